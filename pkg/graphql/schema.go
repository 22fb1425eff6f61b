package graphql

import (
	"errors"
	"fmt"

	"github.com/graphql-go/graphql"
)

// NewSchema builds a read-only schema around query. Extra types are
// registered for interfaces whose implementations no field names directly.
func NewSchema(query *graphql.Object, types ...graphql.Type) (graphql.Schema, error) {
	if query == nil {
		return graphql.Schema{}, errors.New("graphql: nil query object")
	}
	s, err := graphql.NewSchema(graphql.SchemaConfig{Query: query, Types: types})
	if err != nil {
		return s, fmt.Errorf("graphql: build %s schema: %w", query.Name(), err)
	}
	return s, nil
}
