package xrp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Layr-Labs/multichain-tx-go/pkg/chain"
	"github.com/Layr-Labs/multichain-tx-go/pkg/nodeClient"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
)

const (
	codeAccountNotFound = "actNotFound"
	codeTxnNotFound     = "txnNotFound"
)

type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
}

type rpcStatus struct {
	Status       string `json:"status"`
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
}

// rpcError is a failure rippled reports inside a successful HTTP response.
type rpcError struct {
	Code string
}

func (e *rpcError) Error() string {
	return e.Code
}

func errorKind(code string) txErrors.Kind {
	switch code {
	case codeAccountNotFound:
		return txErrors.KindAccountNotInitialized
	case "tooBusy", "noNetwork", "noCurrent", "noClosed", "slowDown", "amendmentBlocked":
		return txErrors.KindTransient
	case "actMalformed", "invalidParams", "invalidTransaction", "srcActMalformed":
		return txErrors.KindInvalidInput
	}
	return txErrors.KindRejected
}

// call runs one rippled method and decodes its result into out.
func call(ctx context.Context, client *nodeClient.Client, network chain.Chain, op txErrors.Op, method string, params any, out any) error {
	var resp rpcResponse
	if err := client.PostJSON(ctx, "/", rpcRequest{Method: method, Params: []any{params}}, &resp); err != nil {
		return err
	}
	var status rpcStatus
	if err := json.Unmarshal(resp.Result, &status); err != nil {
		return malformed(network, op, method, resp.Result, err)
	}
	if status.Status == "error" || status.Error != "" {
		msg := status.ErrorMessage
		if msg == "" {
			msg = status.Error
		}
		return &txErrors.Error{Kind: errorKind(status.Error), Op: op, Chain: network, Message: msg, Err: &rpcError{Code: status.Error}}
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return malformed(network, op, method, resp.Result, err)
	}
	return nil
}

func malformed(network chain.Chain, op txErrors.Op, method string, body []byte, err error) error {
	return &txErrors.Error{Kind: txErrors.KindRejected, Op: op, Chain: network, Message: string(body), Err: fmt.Errorf("malformed %s result: %w", method, err)}
}
