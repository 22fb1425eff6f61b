package graphql_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	gql "github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/ferremas/pkg/graphql"
)

func echoSchema(t *testing.T) gql.Schema {
	t.Helper()
	s, err := gql.NewSchema(gql.SchemaConfig{
		Query: gql.NewObject(gql.ObjectConfig{
			Name: "Query",
			Fields: gql.Fields{
				"echo": &gql.Field{
					Type: gql.String,
					Args: gql.FieldConfigArgument{"msg": &gql.ArgumentConfig{Type: gql.String}},
					Resolve: func(p gql.ResolveParams) (interface{}, error) {
						return p.Args["msg"], nil
					},
				},
			},
		}),
	})
	require.NoError(t, err)
	return s
}

func TestHandlerGetAndPost(t *testing.T) {
	h := graphql.Handler(echoSchema(t))

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/graphql?query="+url.QueryEscape(`{ echo(msg: "hola") }`), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"echo":"hola"}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	body := `{"query":"query($m: String) { echo(msg: $m) }","variables":{"m":"chao"}}`
	h(rec, httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"echo":"chao"}}`, rec.Body.String())
}

func TestHandlerRejectsBadRequests(t *testing.T) {
	h := graphql.Handler(echoSchema(t))

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/graphql", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodDelete, "/graphql", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/graphql?query="+url.QueryEscape(`{ nope }`), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"errors"`)
}

func TestNewSchemaNeedsQuery(t *testing.T) {
	_, err := graphql.NewSchema(nil)
	assert.Error(t, err)

	q := gql.NewObject(gql.ObjectConfig{Name: "Query", Fields: gql.Fields{"ping": &gql.Field{Type: gql.String}}})
	_, err = graphql.NewSchema(q)
	assert.NoError(t, err)
}
