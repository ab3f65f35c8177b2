package database

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/solarmaint/backend/internal/domain/entities"
	"github.com/solarmaint/backend/internal/domain/repositories"
	"github.com/solarmaint/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/solarmaint/backend/pkg/errors"
)

// KeywordSearchAdapter implements KnowledgeSearchRepository with ILIKE
// substring matching over titles, bodies and tags. It is the always
// available fallback behind the Typesense adapter.
type KeywordSearchAdapter struct {
	procedures *ProcedureAdapter
	tips       *TipAdapter
	db         *goqu.Database
	client     *postgres.Client
}

// NewKeywordSearchAdapter creates a new keyword search adapter.
func NewKeywordSearchAdapter(client *postgres.Client) repositories.KnowledgeSearchRepository {
	return &KeywordSearchAdapter{
		procedures: NewProcedureAdapter(client).(*ProcedureAdapter),
		tips:       NewTipAdapter(client).(*TipAdapter),
		db:         goqu.New("postgres", client.DB()),
		client:     client,
	}
}

// SearchProcedures returns active procedures whose title, description or
// tags contain any of the terms.
func (a *KeywordSearchAdapter) SearchProcedures(ctx context.Context, terms []string, limit int) ([]*entities.Procedure, error) {
	if len(terms) == 0 {
		return []*entities.Procedure{}, nil
	}

	ds := a.procedures.selectProcedures().
		Where(goqu.Ex{"is_active": true}).
		Where(goqu.Or(termMatchers(terms, "title", "description")...)).
		Limit(uint(limit))

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to search procedures", err)
	}
	defer rows.Close()

	procedures := []*entities.Procedure{}
	for rows.Next() {
		procedure, err := a.procedures.scanProcedure(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan procedure", err)
		}
		procedures = append(procedures, procedure)
	}
	if err = rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate procedures", err)
	}
	return procedures, nil
}

// SearchTips returns tips whose title, content or tags contain any of the
// terms.
func (a *KeywordSearchAdapter) SearchTips(ctx context.Context, terms []string, limit int) ([]*entities.Tip, error) {
	if len(terms) == 0 {
		return []*entities.Tip{}, nil
	}

	ds := a.tips.selectTips().
		Where(goqu.Or(termMatchers(terms, "title", "content")...)).
		Limit(uint(limit))

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to search tips", err)
	}
	defer rows.Close()

	tips := []*entities.Tip{}
	for rows.Next() {
		tip, err := a.tips.scanTip(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan tip", err)
		}
		tips = append(tips, tip)
	}
	if err = rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate tips", err)
	}
	return tips, nil
}

// termMatchers builds one ILIKE disjunct per term over the given text
// columns plus the flattened tags array.
func termMatchers(terms []string, titleCol, bodyCol string) []exp.Expression {
	matchers := make([]exp.Expression, 0, len(terms))
	for _, term := range terms {
		pattern := "%" + term + "%"
		matchers = append(matchers,
			goqu.I(titleCol).ILike(pattern),
			goqu.I(bodyCol).ILike(pattern),
			goqu.L("array_to_string(tags, ' ') ILIKE ?", pattern),
		)
	}
	return matchers
}
