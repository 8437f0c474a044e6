package neo4j

import (
	"github.com/NimaFathima/astrobiomers/pkg/store"

	neo4jv5 "github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func value(rec *neo4jv5.Record, key string) any {
	v, _ := rec.Get(key)
	return v
}

func stringValue(rec *neo4jv5.Record, key string) string {
	s, _ := value(rec, key).(string)
	return s
}

func intValue(rec *neo4jv5.Record, key string) int64 {
	switch v := value(rec, key).(type) {
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

func floatValue(rec *neo4jv5.Record, key string) float64 {
	switch v := value(rec, key).(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func mapValue(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func listValue(v any) []any {
	l, _ := v.([]any)
	return l
}

func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, x := range l {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func intList(v any) []int {
	l := listValue(v)
	out := make([]int, 0, len(l))
	for _, x := range l {
		switch n := x.(type) {
		case int64:
			out = append(out, int(n))
		case int:
			out = append(out, n)
		}
	}
	return out
}

// node builds a GraphNode from a labels list and a properties map.
func node(labels, props any) store.GraphNode {
	return store.NewGraphNode(stringList(labels), mapValue(props))
}

func nodeFromRecord(rec *neo4jv5.Record, labelsKey, propsKey string) store.GraphNode {
	return node(value(rec, labelsKey), value(rec, propsKey))
}
