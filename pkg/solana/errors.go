package solana

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/ybbus/jsonrpc"
)

// TransactionErrorKey is the string key the runtime reports a failed
// transaction with. Only the keys a purchase can plausibly hit are named;
// others still parse, keyed by their raw name.
//
// Source: https://github.com/solana-labs/solana/blob/fc2bf2d3b669d1c6655ae48b0a05f470938f3676/sdk/src/transaction/mod.rs#L37
type TransactionErrorKey string

const (
	TransactionErrorAccountInUse            TransactionErrorKey = "AccountInUse"
	TransactionErrorAccountNotFound         TransactionErrorKey = "AccountNotFound"
	TransactionErrorAlreadyProcessed        TransactionErrorKey = "AlreadyProcessed"
	TransactionErrorBlockhashNotFound       TransactionErrorKey = "BlockhashNotFound"
	TransactionErrorDuplicateSignature      TransactionErrorKey = "DuplicateSignature"
	TransactionErrorInstructionError        TransactionErrorKey = "InstructionError"
	TransactionErrorInsufficientFundsForFee TransactionErrorKey = "InsufficientFundsForFee"
	TransactionErrorProgramAccountNotFound  TransactionErrorKey = "ProgramAccountNotFound"
	TransactionErrorSignatureFailure        TransactionErrorKey = "SignatureFailure"
)

// InstructionErrorKey is the string key an instruction failure is reported
// with.
//
// Source: https://github.com/solana-labs/solana/blob/4e2754341514cd181ae3f373cc2548bd22e918b8/sdk/program/src/instruction.rs#L23
type InstructionErrorKey string

const (
	InstructionErrorCustom                    InstructionErrorKey = "Custom"
	InstructionErrorAccountAlreadyInitialized InstructionErrorKey = "AccountAlreadyInitialized"
	InstructionErrorInsufficientFunds         InstructionErrorKey = "InsufficientFunds"
	InstructionErrorInvalidAccountData        InstructionErrorKey = "InvalidAccountData"
	InstructionErrorInvalidArgument           InstructionErrorKey = "InvalidArgument"
	InstructionErrorInvalidInstructionData    InstructionErrorKey = "InvalidInstructionData"
	InstructionErrorInvalidSeeds              InstructionErrorKey = "InvalidSeeds"
	InstructionErrorMissingRequiredSignature  InstructionErrorKey = "MissingRequiredSignature"
	InstructionErrorNotEnoughAccountKeys      InstructionErrorKey = "NotEnoughAccountKeys"
)

// CustomError is the numerical error returned by a non-system program.
type CustomError int

func (c CustomError) Error() string {
	return fmt.Sprintf("custom program error: 0x%x", int(c))
}

// JSON-RPC error codes that indicate the node, rather than the transaction,
// is at fault.
//
// Reference: https://github.com/solana-labs/solana/blob/71e9958e061493d7545bd28d4ac7a85aaed6ffbb/client/src/rpc_custom_error.rs
const (
	rpcTooManyRequestsCode = 429
	rpcNodeUnhealthyCode   = -32005
	rpcBlockNotAvailable   = -32004
)

// IsTransientRPCError reports whether an RPC error is a transport level
// failure (rate limiting, node health, server errors) as opposed to the node
// refusing the request itself.
func IsTransientRPCError(err *jsonrpc.RPCError) bool {
	if err == nil {
		return false
	}

	switch {
	case err.Code == rpcTooManyRequestsCode:
		return true
	case err.Code >= 500 && err.Code < 600:
		return true
	case err.Code == rpcNodeUnhealthyCode, err.Code == rpcBlockNotAvailable:
		return true
	}
	return false
}

// InstructionError is the failure of a single instruction, identified by its
// index in the message.
type InstructionError struct {
	Index int
	Err   error
}

func (i InstructionError) Error() string {
	return fmt.Sprintf("Error processing Instruction %d: %v", i.Index, i.Err)
}

func (i InstructionError) Unwrap() error {
	return i.Err
}

func (i InstructionError) ErrorKey() InstructionErrorKey {
	switch {
	case i.Err == nil:
		return ""
	case i.CustomError() != nil:
		return InstructionErrorCustom
	}
	return InstructionErrorKey(i.Err.Error())
}

func (i InstructionError) CustomError() *CustomError {
	if ce, ok := i.Err.(CustomError); ok {
		return &ce
	}
	return nil
}

// JSONString renders the error the way the RPC reports it, as the
// [index, error] tuple.
func (i InstructionError) JSONString() string {
	if ce := i.CustomError(); ce != nil {
		return fmt.Sprintf(`[%d, {"%s": %d}]`, i.Index, InstructionErrorCustom, *ce)
	}
	return fmt.Sprintf(`[%d, "%s"]`, i.Index, i.Err.Error())
}

// parseInstructionError parses the [index, error] tuple. The error is either a
// bare key, or a single entry object such as {"Custom": 6000}.
func parseInstructionError(v interface{}) (e InstructionError, err error) {
	tuple, ok := v.([]interface{})
	if !ok {
		return e, errors.New("unexpected instruction error format")
	}
	if len(tuple) != 2 {
		return e, errors.Errorf("expected InstructionError tuple of 2, got %d", len(tuple))
	}

	if e.Index, err = parseJSONNumber(tuple[0]); err != nil {
		return e, err
	}

	switch detail := tuple[1].(type) {
	case string:
		e.Err = errors.New(detail)
	case map[string]interface{}:
		key, value, err := singleEntry(detail)
		if err != nil {
			e.Err = errors.New("unhandled InstructionError")
			return e, err
		}
		if key != string(InstructionErrorCustom) {
			e.Err = errors.New(key)
			break
		}

		code, err := parseJSONNumber(value)
		if err != nil {
			e.Err = errors.New("unhandled CustomError")
			break
		}
		e.Err = CustomError(code)
	default:
		return e, errors.Errorf("unexpected instruction error detail: %v", detail)
	}
	return e, nil
}

// TransactionError is why a transaction failed, as reported by the runtime.
type TransactionError struct {
	transactionError error
	instructionError *InstructionError
	raw              interface{}
}

// NewTransactionError returns a transaction level error with no instruction
// detail.
func NewTransactionError(key TransactionErrorKey) *TransactionError {
	return &TransactionError{
		transactionError: errors.New(string(key)),
		raw:              string(key),
	}
}

// TransactionErrorFromInstructionError wraps an instruction failure the way
// the runtime reports it.
func TransactionErrorFromInstructionError(err *InstructionError) (*TransactionError, error) {
	var tuple interface{}
	if err := json.Unmarshal([]byte(err.JSONString()), &tuple); err != nil {
		return nil, errors.Wrap(err, "failed to generate raw value")
	}

	return &TransactionError{
		transactionError: errors.New(string(TransactionErrorInstructionError)),
		instructionError: err,
		raw: map[string]interface{}{
			string(TransactionErrorInstructionError): tuple,
		},
	}, nil
}

// ParseRPCError extracts the transaction error carried in the data of a
// failed sendTransaction call, if there is one.
func ParseRPCError(err *jsonrpc.RPCError) (*TransactionError, error) {
	if err == nil || err.Data == nil {
		return nil, nil
	}

	data, ok := err.Data.(map[string]interface{})
	if !ok {
		return nil, errors.New("expected map type")
	}

	if txErr, ok := data["err"]; ok && txErr != nil {
		return ParseTransactionError(txErr)
	}
	return nil, nil
}

// ParseTransactionError parses the "err" value found in signature statuses and
// simulation results.
//
// Any non-nil raw value yields a non-nil error. When raw is not understood the
// parse error is returned alongside an unhandled TransactionError carrying raw,
// since the transaction still failed.
func ParseTransactionError(raw interface{}) (*TransactionError, error) {
	unhandled := &TransactionError{transactionError: errors.New("unhandled transaction error"), raw: raw}

	switch t := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return &TransactionError{transactionError: errors.New(t), raw: raw}, nil
	case map[string]interface{}:

		key, value, err := singleEntry(t)
		if err != nil {
			return unhandled, err
		}
		if key != string(TransactionErrorInstructionError) {
			return &TransactionError{transactionError: errors.New(key), raw: raw}, nil
		}

		instructionErr, err := parseInstructionError(value)
		if err != nil {
			return unhandled, errors.Wrap(err, "failed to parse instruction error")
		}

		return &TransactionError{
			transactionError: errors.New(key),
			instructionError: &instructionErr,
			raw:              raw,
		}, nil
	default:
		return unhandled, errors.Errorf("unhandled error type %T", raw)
	}
}

func (t TransactionError) Error() string {
	switch {
	case t.instructionError != nil:
		return t.instructionError.Error()
	case t.transactionError != nil:
		return t.transactionError.Error()
	}
	return ""
}

func (t TransactionError) ErrorKey() TransactionErrorKey {
	if t.transactionError == nil {
		return ""
	}
	return TransactionErrorKey(t.transactionError.Error())
}

func (t TransactionError) InstructionError() *InstructionError {
	return t.instructionError
}

// CustomErrorCode returns the program specific error code, if the transaction
// failed with one.
func (t TransactionError) CustomErrorCode() (int, bool) {
	if t.instructionError == nil {
		return 0, false
	}

	ce := t.instructionError.CustomError()
	if ce == nil {
		return 0, false
	}
	return int(*ce), true
}

func (t TransactionError) Unwrap() error {
	if t.instructionError != nil {
		return *t.instructionError
	}
	return nil
}

// JSONString renders the error as the RPC would.
func (t TransactionError) JSONString() (string, error) {
	b, err := json.Marshal(t.raw)
	return string(b), err
}

func singleEntry(m map[string]interface{}) (string, interface{}, error) {
	if len(m) != 1 {
		return "", nil, errors.Errorf("expected a single entry, got %d", len(m))
	}
	for k, v := range m {
		return k, v, nil
	}
	panic("unreachable")
}

// parseJSONNumber accepts the forms a number takes depending on how the JSON
// was decoded.
func parseJSONNumber(v interface{}) (int, error) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, errors.Errorf("non int64 value: %v", v)
		}
		return int(i), nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, errors.Errorf("non numeric value: %v", v)
		}
		return int(i), nil
	case float64:
		return int(n), nil
	}
	return 0, errors.Errorf("non numeric value: %v", v)
}
