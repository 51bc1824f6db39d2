package rule

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/sluice/internal/ir"
)

// maxExpansion bounds how many names one inline expression may produce.
const maxExpansion = 4096

// ExpandNames expands an inline expression into names. Each ${lo..hi} group
// yields the integers lo through hi, each ${[a, b]} group yields its list
// entries, and groups combine as a cartesian product, leftmost varying
// slowest. Several expressions may be given separated by commas.
func ExpandNames(expr string) ([]string, error) {
	var out []string
	for _, part := range splitList(expr) {
		names, err := expandOne(part)
		if err != nil {
			return nil, err
		}
		out = append(out, names...)
		if len(out) > maxExpansion {
			return nil, fmt.Errorf("expression %q expands to more than %d names", expr, maxExpansion)
		}
	}
	return out, nil
}

func expandOne(expr string) ([]string, error) {
	results := []string{""}
	rest := expr
	for rest != "" {
		start := strings.Index(rest, "${")
		if start < 0 {
			results = appendAll(results, []string{rest})
			break
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			return nil, fmt.Errorf("unterminated ${ in %q", expr)
		}
		values, err := expandGroup(strings.TrimSpace(rest[start+2 : start+end]))
		if err != nil {
			return nil, fmt.Errorf("%q: %w", expr, err)
		}
		results = appendAll(results, []string{rest[:start]})
		results = appendAll(results, values)
		if len(results) > maxExpansion {
			return nil, fmt.Errorf("expression %q expands to more than %d names", expr, maxExpansion)
		}
		rest = rest[start+end+1:]
	}
	return results, nil
}

func appendAll(prefixes, suffixes []string) []string {
	out := make([]string, 0, len(prefixes)*len(suffixes))
	for _, p := range prefixes {
		for _, s := range suffixes {
			out = append(out, p+s)
		}
	}
	return out
}

func expandGroup(group string) ([]string, error) {
	if strings.HasPrefix(group, "[") && strings.HasSuffix(group, "]") {
		var out []string
		for _, item := range strings.Split(group[1:len(group)-1], ",") {
			item = strings.Trim(strings.TrimSpace(item), `'"`)
			if item == "" {
				return nil, fmt.Errorf("empty entry in ${%s}", group)
			}
			out = append(out, item)
		}
		return out, nil
	}

	lo, hi, ok := strings.Cut(group, "..")
	if !ok {
		return nil, fmt.Errorf("unsupported group ${%s}", group)
	}
	from, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return nil, fmt.Errorf("range start in ${%s}: %w", group, err)
	}
	to, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return nil, fmt.Errorf("range end in ${%s}: %w", group, err)
	}
	if to < from {
		return nil, fmt.Errorf("range ${%s} is descending", group)
	}
	if to-from >= maxExpansion {
		return nil, fmt.Errorf("range ${%s} is too large", group)
	}
	out := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, strconv.Itoa(i))
	}
	return out, nil
}

// ExpandDataNodes expands data-node expressions of the form ds.table.
func ExpandDataNodes(exprs []string) ([]ir.DataNode, error) {
	var out []ir.DataNode
	for _, expr := range exprs {
		names, err := ExpandNames(expr)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			ds, table, ok := strings.Cut(name, ".")
			if !ok || ds == "" || table == "" {
				return nil, fmt.Errorf("data node %q is not of the form data_source.table", name)
			}
			out = append(out, ir.DataNode{DataSource: ds, Table: table})
		}
	}
	return out, nil
}
