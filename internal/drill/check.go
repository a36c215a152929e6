// Package drill provides the virtual-user engine that drives synthetic
// traffic against a target and classifies every response with a verdict.
package drill

import "fmt"

// Outcome is the classification assigned to a single response.
type Outcome int

const (
	// OutcomeUnscored indicates the response matched no rule of the check.
	// It is counted, but deliberately not treated as a defense failure.
	OutcomeUnscored Outcome = iota
	// OutcomePass indicates the target responded as the check expects.
	OutcomePass
	// OutcomeFail indicates the target violated the check's expectation.
	OutcomeFail
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnscored:
		return "unscored"
	case OutcomePass:
		return "pass"
	case OutcomeFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Verdict is the result of evaluating a check against a response status.
// A failing verdict always carries a reason embedding the observed code.
type Verdict struct {
	Outcome    Outcome
	StatusCode int
	Reason     string
}

// Check is the pass/fail predicate attached to a request template.
//
// Evaluation order: PassOn, then FailReasons, then OtherwiseFail. Statuses
// matching none of these yield an unscored verdict.
type Check struct {
	// PassOn lists the statuses that produce a pass verdict.
	PassOn []int

	// FailReasons maps specific statuses to their failure reason.
	FailReasons map[int]string

	// OtherwiseFail makes every remaining status fail with FailFormat.
	OtherwiseFail bool

	// FailFormat is the reason template for OtherwiseFail (one %d verb for
	// the observed status).
	FailFormat string

	// CounterOnPass and CounterOnFail name the security counters bumped per
	// verdict. Empty means no counter.
	CounterOnPass string
	CounterOnFail string
}

// Evaluate classifies a response status.
func (c Check) Evaluate(status int) Verdict {
	for _, s := range c.PassOn {
		if status == s {
			return Verdict{Outcome: OutcomePass, StatusCode: status}
		}
	}

	if reason, ok := c.FailReasons[status]; ok {
		return Verdict{Outcome: OutcomeFail, StatusCode: status, Reason: reason}
	}

	if c.OtherwiseFail {
		format := c.FailFormat
		if format == "" {
			format = "unexpected status: %d"
		}
		return Verdict{
			Outcome:    OutcomeFail,
			StatusCode: status,
			Reason:     fmt.Sprintf(format, status),
		}
	}

	return Verdict{Outcome: OutcomeUnscored, StatusCode: status}
}

// Security counter names bumped by the built-in checks.
const (
	CounterWAFBlock    = "waf_block"
	CounterWAFBypass   = "waf_bypass"
	CounterRateLimited = "rate_limited"
	CounterLimitHit    = "limit_engaged"
	CounterNotLimited  = "not_limited"
	CounterLoginOK     = "login_ok"
	CounterLoginFailed = "login_failed"
)

// CheckOK expects normal traffic to succeed. 429 is a defense misfire on
// benign traffic; every other non-200 status is left unscored.
func CheckOK() Check {
	return Check{
		PassOn: []int{200},
		FailReasons: map[int]string{
			429: "rate limit hit (429)",
		},
		CounterOnFail: CounterRateLimited,
	}
}

// CheckWAFBlock expects the firewall to block the request with 403.
// Anything else, including a success-like 200, is a bypass.
func CheckWAFBlock() Check {
	return Check{
		PassOn:        []int{403},
		OtherwiseFail: true,
		FailFormat:    "WAF bypassed! status: %d",
		CounterOnPass: CounterWAFBlock,
		CounterOnFail: CounterWAFBypass,
	}
}

// CheckLimitHit expects the rate limiter to reject with 429. The success
// semantics are deliberately inverted: a 200 means the limiter has not
// engaged yet.
func CheckLimitHit() Check {
	return Check{
		PassOn: []int{429},
		FailReasons: map[int]string{
			200: "rate limit not reached (200 OK)",
		},
		OtherwiseFail: true,
		FailFormat:    "unexpected status: %d",
		CounterOnPass: CounterLimitHit,
		CounterOnFail: CounterNotLimited,
	}
}

// CheckLogin expects the session-start authentication to return 200.
func CheckLogin() Check {
	return Check{
		PassOn:        []int{200},
		OtherwiseFail: true,
		FailFormat:    "login failed: %d",
		CounterOnPass: CounterLoginOK,
		CounterOnFail: CounterLoginFailed,
	}
}

// CheckPreset resolves a named check preset from configuration.
func CheckPreset(name string) (Check, error) {
	switch name {
	case "ok", "":
		return CheckOK(), nil
	case "waf-block":
		return CheckWAFBlock(), nil
	case "limit-hit":
		return CheckLimitHit(), nil
	case "login":
		return CheckLogin(), nil
	default:
		return Check{}, fmt.Errorf("unknown check preset: %s", name)
	}
}
