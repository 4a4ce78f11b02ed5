package aggregator

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Outcome is the provider's verdict on a recharge, reduced to three tags.
type Outcome int

const (
	// OutcomeIndeterminate means the provider neither confirmed nor denied the recharge:
	// timeouts, transport errors, 5xx, unparseable or "processing" replies.
	OutcomeIndeterminate Outcome = iota
	OutcomeConfirmed
	OutcomeDeclined
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeDeclined:
		return "declined"
	default:
		return "indeterminate"
	}
}

type Result struct {
	Outcome               Outcome
	ProviderTransactionID string
	Message               string
	// Raw is the provider body, always valid JSON (non-JSON bodies are wrapped as a string).
	Raw json.RawMessage
}

func indeterminate(err error) Result {
	return Result{
		Outcome: OutcomeIndeterminate,
		Message: err.Error(),
	}
}

// classifyRecharge maps a dorecharge reply:
//
//	transport-level 5xx, 408, 429, other non-2xx non-4xx  -> indeterminate
//	other 4xx                                            -> declined
//	status=true,  response_code=1                        -> confirmed
//	response_code 2 or 3 (accepted / processing)         -> indeterminate
//	status=false, any other response_code                -> declined
//	status or response_code missing, or unparseable body -> indeterminate
func classifyRecharge(httpStatus int, body []byte) Result {
	raw := safeRaw(body)

	var resp rechargeResponse
	parseErr := json.Unmarshal(body, &resp)

	if httpStatus < 200 || httpStatus >= 300 {
		outcome := OutcomeIndeterminate
		if httpStatus >= 400 && httpStatus < 500 && httpStatus != http.StatusRequestTimeout && httpStatus != http.StatusTooManyRequests {
			outcome = OutcomeDeclined
		}
		msg := resp.Message
		if parseErr != nil || msg == "" {
			msg = fmt.Sprintf("provider returned HTTP %d", httpStatus)
		}
		return Result{Outcome: outcome, Message: msg, Raw: raw}
	}

	if parseErr != nil {
		return Result{Outcome: OutcomeIndeterminate, Message: "unparseable provider response", Raw: raw}
	}

	providerTxnID := string(resp.OperatorID)
	if providerTxnID == "" {
		providerTxnID = string(resp.AckNo)
	}

	result := Result{ProviderTransactionID: providerTxnID, Message: resp.Message, Raw: raw}
	switch code := string(resp.ResponseCode); {
	case resp.Status == nil || code == "":
		result.Outcome = OutcomeIndeterminate
	case *resp.Status && code == "1":
		result.Outcome = OutcomeConfirmed
	case code == "2" || code == "3":
		result.Outcome = OutcomeIndeterminate
	case !*resp.Status:
		result.Outcome = OutcomeDeclined
	default:
		result.Outcome = OutcomeIndeterminate
	}
	return result
}

// classifyStatus maps a status enquiry reply. Only data.status "1" and "0" are
// authoritative; a failed enquiry (any non-2xx, status=false, unknown reference) says
// nothing about the recharge itself and stays indeterminate.
func classifyStatus(httpStatus int, body []byte) Result {
	raw := safeRaw(body)

	if httpStatus < 200 || httpStatus >= 300 {
		return Result{Outcome: OutcomeIndeterminate, Message: fmt.Sprintf("status enquiry returned HTTP %d", httpStatus), Raw: raw}
	}

	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Result{Outcome: OutcomeIndeterminate, Message: "unparseable provider response", Raw: raw}
	}

	providerTxnID := string(resp.Data.OperatorID)
	if providerTxnID == "" {
		providerTxnID = string(resp.Data.AckNo)
	}

	result := Result{Outcome: OutcomeIndeterminate, ProviderTransactionID: providerTxnID, Message: resp.Message, Raw: raw}
	if !resp.Status {
		return result
	}
	switch resp.Data.Status {
	case "1":
		result.Outcome = OutcomeConfirmed
	case "0":
		result.Outcome = OutcomeDeclined
	}
	return result
}

func safeRaw(body []byte) json.RawMessage {
	if len(body) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	wrapped, _ := json.Marshal(string(body))
	return wrapped
}
