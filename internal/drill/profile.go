package drill

import "math/rand"

// RequestSpec is a fully resolved request template.
type RequestSpec struct {
	// Name for this request (used in metrics)
	Name string

	// HTTP method
	Method string

	// Absolute URL, query payload included
	URL string

	// Headers are added to the request as-is
	Headers map[string]string

	// Body is the raw request body
	Body string
}

// Login describes the one-shot authentication performed at session start.
//
// Its outcome is recorded and reported but never gates the tasks that
// follow: a session with a failed login keeps issuing traffic.
type Login struct {
	Request RequestSpec
	Check   Check

	// TokenPath is an optional gjson path into the login response body.
	// When it yields a value, subsequent task requests carry it as a
	// bearer Authorization header.
	TokenPath string
}

// Task is one weighted request/check pair of a traffic profile.
type Task struct {
	Weight  int
	Request RequestSpec
	Check   Check
}

// Profile is a traffic profile: an optional login plus a weighted task set.
// Which profile a simulated session belongs to is fixed at session creation.
type Profile struct {
	Name  string
	Login *Login
	Tasks []Task
}

// TotalWeight returns the sum of task weights. Weights below 1 count as 1.
func (p *Profile) TotalWeight() int {
	total := 0
	for _, t := range p.Tasks {
		total += taskWeight(t)
	}
	return total
}

// Pick selects a task pseudo-randomly in proportion to its weight.
// Returns nil if the profile has no tasks.
func (p *Profile) Pick(rng *rand.Rand) *Task {
	total := p.TotalWeight()
	if total == 0 {
		return nil
	}

	n := rng.Intn(total)
	for i := range p.Tasks {
		n -= taskWeight(p.Tasks[i])
		if n < 0 {
			return &p.Tasks[i]
		}
	}
	return &p.Tasks[len(p.Tasks)-1]
}

func taskWeight(t Task) int {
	if t.Weight < 1 {
		return 1
	}
	return t.Weight
}
