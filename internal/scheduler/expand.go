package scheduler

import (
	"sort"
	"strings"

	"github.com/printeer-go/printeer/internal/errs"
)

// expandedJob is a single post-expansion unit of work.
type expandedJob struct {
	BatchJob
	baseID string
}

// expand produces one expandedJob per Cartesian product of a job's
// array-valued variables, substituting both array and scalar values
// into URL/Output via {name} placeholders.
func expand(jobs []BatchJob) ([]expandedJob, error) {
	var out []expandedJob
	seen := make(map[string]bool)

	for _, job := range jobs {
		scalars := map[string]string{}
		var arrayKeys []string
		for k, v := range job.Variables {
			switch val := v.(type) {
			case string:
				scalars[k] = val
			case []string:
				arrayKeys = append(arrayKeys, k)
			}
		}
		sort.Strings(arrayKeys) // deterministic expansion order

		arrayVals := make([][]string, len(arrayKeys))
		for i, k := range arrayKeys {
			arrayVals[i] = job.Variables[k].([]string)
		}

		combos := cartesian(arrayVals)
		if len(combos) == 0 {
			combos = [][]string{{}}
		}

		for _, combo := range combos {
			subs := make(map[string]string, len(scalars)+len(combo))
			for k, v := range scalars {
				subs[k] = v
			}
			for i, k := range arrayKeys {
				subs[k] = combo[i]
			}

			id := job.ID
			if len(combo) > 0 {
				id = job.ID + "-" + strings.Join(combo, "-")
			}
			if seen[id] {
				return nil, errs.NewDuplicateIDError(id)
			}
			seen[id] = true

			ej := expandedJob{BatchJob: job, baseID: job.ID}
			ej.ID = id
			ej.URL = applyPlaceholders(job.URL, subs)
			ej.Output = applyPlaceholders(job.Output, subs)
			ej.Dependencies = append([]string(nil), job.Dependencies...)
			out = append(out, ej)
		}
	}

	return out, nil
}

func cartesian(lists [][]string) [][]string {
	if len(lists) == 0 {
		return nil
	}
	result := [][]string{{}}
	for _, list := range lists {
		var next [][]string
		for _, prefix := range result {
			for _, v := range list {
				combo := append(append([]string(nil), prefix...), v)
				next = append(next, combo)
			}
		}
		result = next
	}
	return result
}

func applyPlaceholders(s string, subs map[string]string) string {
	for k, v := range subs {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}
