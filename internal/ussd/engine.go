// Package ussd turns USSD gateway requests into menu screens. Each session is
// owned by one of three state machines (registration, farmer, wholesaler) whose
// memory is persisted between requests through a session.Store.
package ussd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/akirachix/mlimizone-backend/internal/entity"
	"github.com/akirachix/mlimizone-backend/internal/phone"
	"github.com/akirachix/mlimizone-backend/internal/repository"
	"github.com/akirachix/mlimizone-backend/internal/service"
	"github.com/akirachix/mlimizone-backend/internal/session"
)

// Request is one hop of a USSD conversation. Text is the whole "*"-joined
// input trail since the session started.
type Request struct {
	SessionID   string
	ServiceCode string
	Phone       string
	Text        string
}

// Response is the screen to show. End closes the conversation.
type Response struct {
	Text string
	End  bool
}

// String renders the gateway's CON/END wire form.
func (r Response) String() string {
	if r.End {
		return "END " + r.Text
	}
	return "CON " + r.Text
}

type Accounts interface {
	FindByPhone(ctx context.Context, phone string) (*entity.Account, error)
	Register(ctx context.Context, reg service.Registration) (*entity.Account, error)
}

type Market interface {
	Region(district string) string
	Prices(ctx context.Context, crop string) ([]entity.MarketPrice, error)
	ListProduce(ctx context.Context, farmer *entity.Account, crop string, quantity float64) (*service.ListingReceipt, error)
	Offers(ctx context.Context, crop string) ([]service.Offer, error)
	Offer(ctx context.Context, listingID int64) (*service.Offer, error)
	Book(ctx context.Context, wholesaler *entity.Account, listingID int64) (*entity.Order, error)
	UnpaidOrders(ctx context.Context, wholesalerID int64) ([]entity.Order, error)
	Order(ctx context.Context, id int64) (*entity.Order, error)
}

type Payments interface {
	Initiate(ctx context.Context, wholesaler *entity.Account, orderID int64) (*entity.Payment, error)
}

// Engine dispatches requests to the flow that owns the session.
type Engine struct {
	sessions session.Store
	accounts Accounts
	market   Market
	payments Payments
}

func NewEngine(sessions session.Store, accounts Accounts, market Market, payments Payments) *Engine {
	return &Engine{
		sessions: sessions,
		accounts: accounts,
		market:   market,
		payments: payments,
	}
}

// machine is a role flow bound to one account and its decoded memory.
type machine interface {
	// step interprets one new trail segment.
	step(ctx context.Context, input string) (reply, error)
	// render rebuilds the screen of the current level without consuming input.
	render(ctx context.Context) (reply, error)
	flow() session.Flow
	memory() any
}

// Handle never fails: internal errors end the session with a generic screen.
func (e *Engine) Handle(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic while handling USSD request", "session_id", req.SessionID, "panic", r)
			e.discard(ctx, req.SessionID)
			resp = Response{Text: msgSessionError, End: true}
		}
	}()

	resp, err := e.handle(ctx, req)
	if err != nil {
		slog.Error("Failed to handle USSD request", "session_id", req.SessionID, "err", err)
		e.discard(ctx, req.SessionID)
		return Response{Text: msgSessionError, End: true}
	}
	return resp
}

func (e *Engine) handle(ctx context.Context, req Request) (Response, error) {
	msisdn, err := phone.Normalize(req.Phone)
	if err != nil || !phone.Valid(msisdn) {
		slog.Warn("Rejected USSD request with invalid phone", "session_id", req.SessionID)
		return Response{Text: msgInvalidPhone, End: true}, nil
	}
	segments := splitTrail(req.Text)

	sess, err := e.sessions.Get(ctx, req.SessionID)
	if errors.Is(err, session.ErrNotFound) {
		sess = nil
	} else if err != nil {
		return Response{}, fmt.Errorf("failed to load session: %w", err)
	}

	acct, err := e.accounts.FindByPhone(ctx, msisdn)
	if errors.Is(err, repository.ErrNotFound) {
		return e.register(ctx, req.SessionID, msisdn, sess, segments)
	}
	if err != nil {
		return Response{}, fmt.Errorf("failed to look up account: %w", err)
	}

	consumed := 0
	if sess != nil && sess.Flow != roleFlow(acct.Role) {
		// registered elsewhere while this session was open; keep the cursor, drop the memory
		consumed = sess.Consumed
		if err := e.sessions.Delete(ctx, sess.ID); err != nil {
			return Response{}, fmt.Errorf("failed to drop stale session: %w", err)
		}
		sess = nil
	}
	return e.enterRole(ctx, req.SessionID, acct, sess, segments, consumed)
}

// enterRole resumes sess, or starts the account's role flow at root with the
// first consumed segments already spent.
func (e *Engine) enterRole(ctx context.Context, sessionID string, acct *entity.Account, sess *session.Session, segments []string, consumed int) (Response, error) {
	fresh := sess == nil
	var m machine
	switch acct.Role {
	case entity.RoleFarmer:
		f := &farmerFlow{market: e.market, account: acct, mem: newFarmerMemory()}
		if !fresh {
			if err := sess.Decode(&f.mem); err != nil {
				return Response{}, err
			}
		}
		m = f
	case entity.RoleWholesaler:
		w := &wholesalerFlow{market: e.market, payments: e.payments, account: acct, mem: newWholesalerMemory()}
		if !fresh {
			if err := sess.Decode(&w.mem); err != nil {
				return Response{}, err
			}
		}
		m = w
	default:
		if !fresh {
			e.discard(ctx, sess.ID)
		}
		return Response{Text: msgRoleUnsupported, End: true}, nil
	}

	if fresh {
		sess = &session.Session{ID: sessionID, Phone: acct.Phone, Consumed: consumed}
	}
	r, err := e.drive(ctx, m, sess, segments)
	if err != nil {
		return Response{}, err
	}
	return e.finish(ctx, sess, fresh, m.flow(), m.memory(), r, len(segments))
}

// drive feeds the unconsumed segments through m one at a time. With nothing
// new to interpret the current level is shown again.
func (e *Engine) drive(ctx context.Context, m machine, sess *session.Session, segments []string) (reply, error) {
	pending := unconsumed(sess.Consumed, segments)
	if len(pending) == 0 {
		return m.render(ctx)
	}

	var r reply
	for _, input := range pending {
		var err error
		if r, err = m.step(ctx, input); err != nil {
			return reply{}, err
		}
		if r.end {
			break
		}
	}
	return r, nil
}

// finish persists the memory for CON screens and drops the session on END.
func (e *Engine) finish(ctx context.Context, sess *session.Session, fresh bool, flow session.Flow, mem any, r reply, consumed int) (Response, error) {
	if r.end {
		if !fresh {
			if err := e.sessions.Delete(ctx, sess.ID); err != nil {
				slog.Warn("Failed to delete finished session", "session_id", sess.ID, "err", err)
			}
		}
		return Response{Text: r.text, End: true}, nil
	}

	if err := sess.Encode(flow, mem); err != nil {
		return Response{}, err
	}
	sess.Consumed = consumed

	if fresh {
		if err := e.sessions.Create(ctx, sess); err != nil {
			return Response{}, fmt.Errorf("failed to create session: %w", err)
		}
	} else if err := e.sessions.Save(ctx, sess); err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			return Response{}, fmt.Errorf("failed to save session: %w", err)
		}
		// expired between load and save
		if err := e.sessions.Create(ctx, sess); err != nil {
			return Response{}, fmt.Errorf("failed to recreate session: %w", err)
		}
	}
	return Response{Text: r.text}, nil
}

func (e *Engine) discard(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := e.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, session.ErrNotFound) {
		slog.Warn("Failed to delete session", "session_id", sessionID, "err", err)
	}
}

func roleFlow(r entity.Role) session.Flow {
	switch r {
	case entity.RoleFarmer:
		return session.FlowFarmer
	case entity.RoleWholesaler:
		return session.FlowWholesaler
	}
	return ""
}

// splitTrail breaks "1*Jane*Blantyre" into its segments. An empty trail has none.
func splitTrail(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	segments := strings.Split(text, "*")
	for i := range segments {
		segments[i] = strings.TrimSpace(segments[i])
	}
	return segments
}

// unconsumed returns the segments after the cursor. A trail shorter than the
// cursor has nothing new.
func unconsumed(cursor int, segments []string) []string {
	if cursor >= len(segments) {
		return nil
	}
	return segments[cursor:]
}
