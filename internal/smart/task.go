package smart

import "github.com/existflow/caldo/internal/model"

// EncodeTask renders a task's structured fields as its canonical smart
// string. The result decodes back to the same fields.
func EncodeTask(t model.Task) string {
	return Encode(Fields{
		Summary:      t.Summary,
		Priority:     t.Priority,
		Due:          t.Due,
		Categories:   t.Categories,
		DurationMins: t.DurationMins,
	})
}

// ApplyTo writes decoded fields onto a task, leaving description,
// status and sync bookkeeping untouched.
func ApplyTo(f Fields, t *model.Task) {
	t.Summary = f.Summary
	t.Priority = f.Priority
	t.Due = f.Due
	t.Categories = f.Categories
	t.DurationMins = f.DurationMins
}
