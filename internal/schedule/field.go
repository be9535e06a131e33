package schedule

import (
	"sort"
	"strconv"
	"strings"
)

// ParseField parses one cron field expression into integer candidates within
// [0, max].
//
// Supported forms:
//   - "*"     every integer from 0 to max inclusive
//   - "a,b,c" the literal integers; values are NOT checked against max
//   - "a-b"   a..b inclusive; a > b yields nothing
//   - "a/b"   {0, b, 2b, ..., ceil(max/b)*b}, left operand ignored; the final
//     term is NOT clipped and can land exactly at or above max
//   - "n"     the single integer
//
// Tokens that fail integer parsing are dropped rather than reported; callers
// treat an empty candidate set as "no candidates".
func ParseField(expr string, max int) []int {
	expr = strings.TrimSpace(expr)
	if expr == "" || max < 0 {
		return nil
	}

	switch {
	case expr == "*":
		out := make([]int, 0, max+1)
		for v := 0; v <= max; v++ {
			out = append(out, v)
		}
		return out

	case strings.Contains(expr, ","):
		parts := strings.Split(expr, ",")
		out := make([]int, 0, len(parts))
		for _, p := range parts {
			v, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				continue
			}
			out = append(out, v)
		}
		return out

	// Step before range: "*/6" must reach the step branch.
	case strings.Contains(expr, "/"):
		parts := strings.SplitN(expr, "/", 2)
		step, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || step <= 0 {
			return nil
		}
		last := (max + step - 1) / step // ceil(max/step)
		out := make([]int, 0, last+1)
		for i := 0; i <= last; i++ {
			out = append(out, i*step)
		}
		return out

	case strings.Contains(expr, "-"):
		parts := strings.SplitN(expr, "-", 2)
		a, errA := strconv.Atoi(strings.TrimSpace(parts[0]))
		b, errB := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errA != nil || errB != nil {
			return nil
		}
		if a > b {
			return nil
		}
		out := make([]int, 0, b-a+1)
		for v := a; v <= b; v++ {
			out = append(out, v)
		}
		return out

	default:
		v, err := strconv.Atoi(expr)
		if err != nil {
			return nil
		}
		return []int{v}
	}
}

// sortedUnique sorts and deduplicates a candidate set.
//
// Comma lists preserve input order out of ParseField; previews are easier to
// reason about when candidates ascend, so the fire-time scan normalizes them
// here instead of documenting unordered output.
func sortedUnique(in []int) []int {
	if len(in) == 0 {
		return nil
	}
	out := append([]int(nil), in...)
	sort.Ints(out)
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}
