package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"db-merge/internal/dialect"
	"db-merge/internal/errs"
	"db-merge/internal/merge"
	"db-merge/internal/schema"
)

// Progress is reported after every applied action.
type Progress struct {
	Description     string
	PercentComplete int
}

// Beginner starts transactions; *sql.DB satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// ExecuteOptions tune Execute.
type ExecuteOptions struct {
	Logger     *zerolog.Logger
	OnProgress func(Progress)
}

// Validate collects the validation messages of every action, each
// prefixed with the action description.
func Validate(ctx context.Context, src schema.Source, actions []merge.Action) ([]string, error) {
	var problems []string
	for _, a := range actions {
		msgs, err := a.ValidationErrors(ctx, src)
		if err != nil {
			return nil, err
		}
		for _, m := range msgs {
			problems = append(problems, fmt.Sprintf("%s: %s", a.Description(), m))
		}
	}
	return problems, nil
}

// Execute validates the whole batch and, only if every action is valid,
// applies the actions in order. Each action runs in its own transaction;
// a failure stops the batch with earlier actions committed. MySQL and
// Oracle commit every DDL statement on their own, so there a failed action
// can be left half applied.
func Execute(ctx context.Context, db Beginner, src schema.Source, actions []merge.Action, opts ExecuteOptions) error {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	problems, err := Validate(ctx, src, actions)
	if err != nil {
		return err
	}
	if len(problems) > 0 {
		log.Error().Strs("problems", problems).Msg("batch blocked by validation")
		return errs.Validation(fmt.Sprintf("%d validation error(s), nothing was executed", len(problems)), problems)
	}

	ic, ok := src.Dialect().(dialect.ImplicitCommit)
	autoCommit := ok && ic.CommitsDDL()

	for i, a := range actions {
		// 실행 직전에 렌더링 (앞선 액션이 카탈로그를 바꾼다)
		stmts, err := a.SQLCommands(ctx, src)
		if err != nil {
			return err
		}

		log.Info().Str("action", a.Description()).Int("statements", len(stmts)).Msg("applying")
		if autoCommit && len(stmts) > 1 {
			log.Warn().Str("action", a.Description()).Str("dialect", src.Dialect().Name()).
				Msg("DDL commits per statement here; a failure leaves the action partially applied")
		}
		if err := apply(ctx, db, a, stmts); err != nil {
			if e, ok := errs.As(err); ok {
				log.Error().Err(e.Cause).Str("action", e.Action).Str("sql", e.SQL).Msg("action failed")
			}
			return err
		}

		// 진행률 콜백 (UI 진행바용)
		if opts.OnProgress != nil {
			opts.OnProgress(Progress{
				Description:     a.Description(),
				PercentComplete: (i + 1) * 100 / len(actions),
			})
		}
	}

	log.Info().Int("actions", len(actions)).Msg("migration applied")
	return nil
}

func apply(ctx context.Context, db Beginner, a merge.Action, stmts []string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Execution(a.Description(), "", err)
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return errs.Execution(a.Description(), stmt, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.Execution(a.Description(), "", err)
	}
	return nil
}
