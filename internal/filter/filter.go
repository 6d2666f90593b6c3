// Package filter compiles CEL expressions into predicates over posts.
// Filter strings arrive from the API and CLI surfaces, so expressions are
// type-checked against a fixed set of post attributes before evaluation.
package filter

import (
	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"github.com/needscoop/needscoop/store"
)

// Engine owns the CEL environment filter expressions compile against.
// One engine serves all callers; compiled predicates are safe for
// concurrent use.
type Engine struct {
	env *cel.Env
}

// NewEngine creates the filter environment with the post attributes.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("source", cel.StringType),
		cel.Variable("source_uid", cel.StringType),
		cel.Variable("author_id", cel.StringType),
		cel.Variable("text", cel.StringType),
		cel.Variable("language", cel.StringType),
		cel.Variable("uri", cel.StringType),
		cel.Variable("created_ts", cel.IntType),
		cel.Variable("collected_ts", cel.IntType),
		cel.Variable("likes", cel.IntType),
		cel.Variable("reposts", cel.IntType),
		cel.Variable("replies", cel.IntType),
		cel.Variable("signal_type", cel.StringType),
		cel.Variable("signal_matches", cel.IntType),
		cel.Variable("cluster_id", cel.IntType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create filter environment")
	}
	return &Engine{env: env}, nil
}

// Compile parses and type-checks one filter expression.
func (e *Engine) Compile(expression string) (*Predicate, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(issues.Err(), "invalid filter %q", expression)
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Errorf("filter %q must evaluate to a boolean, got %s", expression, ast.OutputType())
	}
	program, err := e.env.Program(ast)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build filter program for %q", expression)
	}
	return &Predicate{program: program}, nil
}

// Predicate is a compiled filter expression.
type Predicate struct {
	program cel.Program
}

// Match reports whether the post satisfies the filter.
func (p *Predicate) Match(post *store.Post) (bool, error) {
	out, _, err := p.program.Eval(map[string]any{
		"source":         post.Source,
		"source_uid":     post.SourceUID,
		"author_id":      post.AuthorID,
		"text":           post.Text,
		"language":       post.Language,
		"uri":            post.URI,
		"created_ts":     post.CreatedTs,
		"collected_ts":   post.CollectedTs,
		"likes":          int64(post.Likes),
		"reposts":        int64(post.Reposts),
		"replies":        int64(post.Replies),
		"signal_type":    post.SignalType,
		"signal_matches": int64(post.SignalMatches),
		"cluster_id":     int64(post.ClusterID),
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to evaluate filter")
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("filter returned %T, want bool", out.Value())
	}
	return matched, nil
}

// Select returns the posts satisfying the filter, preserving input order.
func (p *Predicate) Select(posts []*store.Post) ([]*store.Post, error) {
	matched := []*store.Post{}
	for _, post := range posts {
		ok, err := p.Match(post)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, post)
		}
	}
	return matched, nil
}
