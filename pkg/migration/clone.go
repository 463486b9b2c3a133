package migration

import "encoding/json"

// Clone returns a deep copy of the plan. Callers can mutate the copy
// without affecting the original.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		// Plans are plain data and always marshal.
		panic("migration: plan clone: " + err.Error())
	}
	clone := &Plan{}
	if err := json.Unmarshal(data, clone); err != nil {
		panic("migration: plan clone: " + err.Error())
	}
	return clone
}
