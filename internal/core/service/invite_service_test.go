package service

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tinygate/tinygate/internal/core/domain"
)

func newInviteSvc(repo *memInviteRepo, clock *fixedClock) (*InviteService, *recordingAudit) {
	audit := &recordingAudit{}
	svc := NewInviteService(repo, audit, InviteConfig{
		Enabled:   true,
		TokenSize: 16,
		TokenTTL:  24 * time.Hour,
	}, zerolog.Nop())
	svc.now = clock.now
	return svc, audit
}

func startClock() *fixedClock {
	return &fixedClock{t: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)}
}

func TestInviteService_Issue(t *testing.T) {
	repo := newMemInviteRepo()
	clock := startClock()
	svc, audit := newInviteSvc(repo, clock)

	tok, err := svc.Issue(context.Background(), "root")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(tok.Value)
	if err != nil || len(raw) != 16 {
		t.Fatalf("expected 16 random bytes, got %d (%v)", len(raw), err)
	}
	if !tok.ExpiresAt.Equal(clock.now().Add(24 * time.Hour)) {
		t.Errorf("unexpected expiry: %v", tok.ExpiresAt)
	}
	if tok.Consumed || tok.IssuedBy != "root" {
		t.Errorf("unexpected token state: %+v", tok)
	}
	if _, err := repo.Find(context.Background(), tok.Value); err != nil {
		t.Errorf("token not persisted: %v", err)
	}
	if got := audit.types(); len(got) != 1 || got[0] != domain.EventTokenIssued {
		t.Errorf("expected token_issued audit event, got %v", got)
	}

	other, _ := svc.Issue(context.Background(), "root")
	if other.Value == tok.Value {
		t.Errorf("expected distinct token values")
	}
}

func TestInviteService_Disabled(t *testing.T) {
	svc := NewInviteService(newMemInviteRepo(), &recordingAudit{}, InviteConfig{Enabled: false}, zerolog.Nop())
	ctx := context.Background()

	if _, err := svc.Issue(ctx, "root"); !errors.Is(err, domain.ErrRegistrationDisabled) {
		t.Errorf("Issue: expected ErrRegistrationDisabled, got %v", err)
	}
	if _, err := svc.List(ctx, ""); !errors.Is(err, domain.ErrRegistrationDisabled) {
		t.Errorf("List: expected ErrRegistrationDisabled, got %v", err)
	}
	if err := svc.Revoke(ctx, "x"); !errors.Is(err, domain.ErrRegistrationDisabled) {
		t.Errorf("Revoke: expected ErrRegistrationDisabled, got %v", err)
	}
	if err := svc.Consume(ctx, "x", "alice"); !errors.Is(err, domain.ErrRegistrationDisabled) {
		t.Errorf("Consume: expected ErrRegistrationDisabled, got %v", err)
	}
}

func TestInviteService_Consume(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(svc *InviteService, clock *fixedClock) string
		wantErr error
	}{
		{
			name: "fresh token",
			prepare: func(svc *InviteService, _ *fixedClock) string {
				tok, _ := svc.Issue(context.Background(), "root")
				return tok.Value
			},
		},
		{
			name: "already used",
			prepare: func(svc *InviteService, _ *fixedClock) string {
				tok, _ := svc.Issue(context.Background(), "root")
				_ = svc.Consume(context.Background(), tok.Value, "first")
				return tok.Value
			},
			wantErr: domain.ErrInvalidRegistrationToken,
		},
		{
			name: "expired",
			prepare: func(svc *InviteService, clock *fixedClock) string {
				tok, _ := svc.Issue(context.Background(), "root")
				clock.advance(24*time.Hour + time.Second)
				return tok.Value
			},
			wantErr: domain.ErrInvalidRegistrationToken,
		},
		{
			name: "expires exactly now",
			prepare: func(svc *InviteService, clock *fixedClock) string {
				tok, _ := svc.Issue(context.Background(), "root")
				clock.advance(24 * time.Hour)
				return tok.Value
			},
			wantErr: domain.ErrInvalidRegistrationToken,
		},
		{
			name:    "unknown",
			prepare: func(*InviteService, *fixedClock) string { return "does-not-exist" },
			wantErr: domain.ErrInvalidRegistrationToken,
		},
		{
			name:    "empty",
			prepare: func(*InviteService, *fixedClock) string { return "" },
			wantErr: domain.ErrInvalidRegistrationToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := startClock()
			svc, _ := newInviteSvc(newMemInviteRepo(), clock)
			value := tt.prepare(svc, clock)

			err := svc.Consume(context.Background(), value, "alice")
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestInviteService_Consume_ExactlyOneConcurrentWinner(t *testing.T) {
	repo := newMemInviteRepo()
	svc, _ := newInviteSvc(repo, startClock())
	tok, err := svc.Issue(context.Background(), "root")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	const callers = 64
	var (
		wg      sync.WaitGroup
		wins    atomic.Int32
		rejects atomic.Int32
		start   = make(chan struct{})
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			err := svc.Consume(context.Background(), tok.Value, "user")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, domain.ErrInvalidRegistrationToken):
				rejects.Add(1)
			default:
				t.Errorf("caller %d: unexpected error %v", i, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
	if rejects.Load() != callers-1 {
		t.Fatalf("expected %d rejections, got %d", callers-1, rejects.Load())
	}
}

func TestInviteService_Release(t *testing.T) {
	repo := newMemInviteRepo()
	svc, audit := newInviteSvc(repo, startClock())
	ctx := context.Background()
	tok, _ := svc.Issue(ctx, "root")

	if err := svc.Consume(ctx, tok.Value, "alice"); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := svc.Release(ctx, tok.Value, "mallory"); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Fatalf("release by another user: expected ErrTokenNotFound, got %v", err)
	}
	if err := svc.Release(ctx, tok.Value, "alice"); err != nil {
		t.Fatalf("release: %v", err)
	}

	stored, _ := repo.Find(ctx, tok.Value)
	if stored.Consumed || stored.ConsumedBy != "" {
		t.Errorf("expected token back in unconsumed state, got %+v", stored)
	}
	if err := svc.Consume(ctx, tok.Value, "alice"); err != nil {
		t.Errorf("expected retry with released token to succeed, got %v", err)
	}

	types := audit.types()
	if types[len(types)-1] != domain.EventTokenReleased {
		t.Errorf("expected token_released audit event, got %v", types)
	}
}

func TestInviteService_Revoke(t *testing.T) {
	repo := newMemInviteRepo()
	svc, _ := newInviteSvc(repo, startClock())
	ctx := context.Background()

	open, _ := svc.Issue(ctx, "root")
	used, _ := svc.Issue(ctx, "root")
	_ = svc.Consume(ctx, used.Value, "alice")

	if err := svc.Revoke(ctx, open.Value); err != nil {
		t.Fatalf("revoke unconsumed: %v", err)
	}
	if _, err := repo.Find(ctx, open.Value); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Errorf("expected revoked token to be gone, got %v", err)
	}
	if err := svc.Revoke(ctx, open.Value); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Errorf("second revoke: expected ErrTokenNotFound, got %v", err)
	}
	if err := svc.Revoke(ctx, used.Value); !errors.Is(err, domain.ErrTokenConsumed) {
		t.Errorf("revoke consumed: expected ErrTokenConsumed, got %v", err)
	}
	if _, err := repo.Find(ctx, used.Value); err != nil {
		t.Errorf("consumed token must survive revoke, got %v", err)
	}
}

func TestInviteService_List(t *testing.T) {
	svc, _ := newInviteSvc(newMemInviteRepo(), startClock())
	ctx := context.Background()

	a, _ := svc.Issue(ctx, "root")
	b, _ := svc.Issue(ctx, "ops")
	c, _ := svc.Issue(ctx, "root")

	all, err := svc.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].Value != a.Value || all[1].Value != b.Value || all[2].Value != c.Value {
		t.Fatalf("expected issuance order, got %+v", all)
	}

	mine, _ := svc.List(ctx, "root")
	if len(mine) != 2 {
		t.Errorf("expected 2 tokens for root, got %d", len(mine))
	}
}
