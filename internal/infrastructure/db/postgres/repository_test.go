package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tinygate/tinygate/internal/core/domain"
)

var created = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return mock, db
}

func TestAccountCreate_Success(t *testing.T) {
	mock, db := newMock(t)
	repo := NewAccountRepository(db)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+accounts\s*\(id,\s*username,\s*password_hash,\s*second_factor_secret,\s*is_admin,\s*created_at\)`).
		WithArgs("id-1", "alice", "hash", nil, true, created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &domain.Account{
		ID: "id-1", Username: "alice", PasswordHash: "hash", IsAdmin: true, CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
}

func TestAccountCreate_UniqueViolation(t *testing.T) {
	mock, db := newMock(t)
	repo := NewAccountRepository(db)

	mock.ExpectExec(`INSERT\s+INTO\s+accounts`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_username_key"})

	err := repo.Create(context.Background(), &domain.Account{ID: "id-2", Username: "alice", CreatedAt: created})
	if !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAccountCreate_DBError(t *testing.T) {
	mock, db := newMock(t)
	repo := NewAccountRepository(db)

	mock.ExpectExec(`INSERT\s+INTO\s+accounts`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &domain.Account{ID: "id-3", Username: "bob", CreatedAt: created})
	if err == nil || errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestAccountFindByUsername(t *testing.T) {
	mock, db := newMock(t)
	repo := NewAccountRepository(db)

	q := `(?s)^SELECT\s+id,\s*username,\s*password_hash,\s*second_factor_secret,\s*is_admin,\s*created_at\s+FROM\s+accounts\s+WHERE\s+username\s*=\s*\$1$`
	mock.ExpectQuery(q).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "second_factor_secret", "is_admin", "created_at"}).
			AddRow("id-1", "alice", "hash", "JBSWY3DPEHPK3PXP", false, created))
	mock.ExpectQuery(q).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	a, err := repo.FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("FindByUsername error: %v", err)
	}
	if a.ID != "id-1" || !a.HasSecondFactor() || !a.CreatedAt.Equal(created) {
		t.Fatalf("unexpected account: %+v", a)
	}

	if _, err := repo.FindByUsername(context.Background(), "ghost"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAccountDelete(t *testing.T) {
	mock, db := newMock(t)
	repo := NewAccountRepository(db)

	mock.ExpectExec(`^DELETE\s+FROM\s+accounts\s+WHERE\s+username\s*=\s*\$1$`).
		WithArgs("alice").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^DELETE\s+FROM\s+accounts`).
		WithArgs("alice").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "alice"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := repo.Delete(context.Background(), "alice"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestInviteConsume_ConditionalUpdate(t *testing.T) {
	mock, db := newMock(t)
	repo := NewInviteRepository(db)
	now := created.Add(time.Hour)

	q := `(?s)^UPDATE\s+invite_tokens\s+SET\s+consumed\s*=\s*TRUE,\s*consumed_by\s*=\s*\$2\s+WHERE\s+value\s*=\s*\$1\s+AND\s+NOT\s+consumed\s+AND\s+expires_at\s*>\s*\$3$`
	mock.ExpectExec(q).WithArgs("tok", "alice", now).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("tok", "bob", now).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Consume(context.Background(), "tok", "alice", now); err != nil {
		t.Fatalf("Consume error: %v", err)
	}
	if err := repo.Consume(context.Background(), "tok", "bob", now); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestInviteRelease(t *testing.T) {
	mock, db := newMock(t)
	repo := NewInviteRepository(db)

	mock.ExpectExec(`(?s)^UPDATE\s+invite_tokens\s+SET\s+consumed\s*=\s*FALSE,\s*consumed_by\s*=\s*NULL\s+WHERE\s+value\s*=\s*\$1\s+AND\s+consumed\s+AND\s+consumed_by\s*=\s*\$2$`).
		WithArgs("tok", "alice").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Release(context.Background(), "tok", "alice"); err != nil {
		t.Fatalf("Release error: %v", err)
	}
}

func TestInviteDelete_OnlyUnconsumed(t *testing.T) {
	mock, db := newMock(t)
	repo := NewInviteRepository(db)

	mock.ExpectExec(`^DELETE\s+FROM\s+invite_tokens\s+WHERE\s+value\s*=\s*\$1\s+AND\s+NOT\s+consumed$`).
		WithArgs("tok").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "tok"); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestInviteCreateFindList(t *testing.T) {
	mock, db := newMock(t)
	repo := NewInviteRepository(db)
	ctx := context.Background()
	expires := created.Add(24 * time.Hour)
	cols := []string{"value", "issued_by", "issued_at", "expires_at", "consumed", "consumed_by"}

	mock.ExpectExec(`^INSERT\s+INTO\s+invite_tokens`).
		WithArgs("tok", "root", created, expires).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`FROM\s+invite_tokens\s+WHERE\s+value\s*=\s*\$1$`).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("tok", "root", created, expires, true, "alice"))
	mock.ExpectQuery(`FROM\s+invite_tokens\s+WHERE\s+value\s*=\s*\$1$`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectQuery(`FROM\s+invite_tokens\s+WHERE\s+issued_by\s*=\s*\$1\s+ORDER\s+BY\s+seq$`).
		WithArgs("root").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("tok", "root", created, expires, true, "alice").
			AddRow("tok2", "root", created, expires, false, nil))
	mock.ExpectQuery(`FROM\s+invite_tokens\s+ORDER\s+BY\s+seq$`).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("tok3", nil, created, expires, false, nil))

	if err := repo.Create(ctx, &domain.InviteToken{Value: "tok", IssuedBy: "root", IssuedAt: created, ExpiresAt: expires}); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	tok, err := repo.Find(ctx, "tok")
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if !tok.Consumed || tok.ConsumedBy != "alice" || !tok.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected token: %+v", tok)
	}
	if _, err := repo.Find(ctx, "nope"); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}

	list, err := repo.List(ctx, "root")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != 2 || list[1].Value != "tok2" || list[1].ConsumedBy != "" {
		t.Fatalf("unexpected list: %+v", list)
	}

	all, err := repo.List(ctx, "")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(all) != 1 || all[0].IssuedBy != "" {
		t.Fatalf("unexpected list: %+v", all)
	}
}

func TestAuditInsertEvent(t *testing.T) {
	mock, db := newMock(t)
	repo := NewAuditRepository(db)

	mock.ExpectExec(`^INSERT\s+INTO\s+auth_events`).
		WithArgs("evt-1", "login_failed", "alice", "198.51.100.4", nil, created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.InsertEvent(context.Background(), &domain.AuthEvent{
		ID: "evt-1", Type: domain.EventLoginFailed, Username: "alice", Peer: "198.51.100.4", Timestamp: created,
	})
	if err != nil {
		t.Fatalf("InsertEvent error: %v", err)
	}
}
