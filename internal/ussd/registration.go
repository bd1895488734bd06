package ussd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/akirachix/mlimizone-backend/internal/entity"
	"github.com/akirachix/mlimizone-backend/internal/service"
	"github.com/akirachix/mlimizone-backend/internal/session"
)

type registrationState string

const (
	registrationRole     registrationState = "choose_role"
	registrationName     registrationState = "enter_name"
	registrationDistrict registrationState = "enter_location"
)

// RegistrationMemory is the persisted state of an unregistered caller.
type RegistrationMemory struct {
	Level registrationState `json:"level"`
	Role  entity.Role       `json:"role,omitempty"`
	Name  string            `json:"name,omitempty"`
}

const (
	promptRole     = "Welcome to MlimiZone. Register as:\n1. Farmer\n2. Wholesaler"
	promptName     = "Enter your full name:"
	promptDistrict = "Enter your district (e.g., Blantyre, Lilongwe, Mzimba):"
)

// register runs the registration flow. Once the account exists the session is
// handed to the role flow, which sees only the segments after the district.
func (e *Engine) register(ctx context.Context, sessionID, msisdn string, sess *session.Session, segments []string) (Response, error) {
	mem := RegistrationMemory{Level: registrationRole}
	fresh := sess == nil || sess.Flow != session.FlowRegistration
	if fresh {
		consumed := 0
		if sess != nil {
			consumed = sess.Consumed
			e.discard(ctx, sess.ID)
		}
		sess = &session.Session{ID: sessionID, Phone: msisdn, Consumed: consumed}
	} else if err := sess.Decode(&mem); err != nil {
		return Response{}, err
	}

	pending := unconsumed(sess.Consumed, segments)
	r := mem.render()
	for i, input := range pending {
		// "0" has no meaning before the caller is registered
		if input == inputBack {
			continue
		}

		var (
			acct *entity.Account
			err  error
		)
		r, acct, err = e.registrationStep(ctx, &mem, msisdn, input)
		if err != nil {
			return Response{}, err
		}
		if acct != nil {
			if !fresh {
				e.discard(ctx, sess.ID)
			}
			return e.enterRole(ctx, sessionID, acct, nil, segments, sess.Consumed+i+1)
		}
	}
	return e.finish(ctx, sess, fresh, session.FlowRegistration, mem, r, len(segments))
}

// registrationStep returns the created account once the district is accepted.
func (e *Engine) registrationStep(ctx context.Context, mem *RegistrationMemory, msisdn, input string) (reply, *entity.Account, error) {
	switch mem.Level {
	case registrationRole:
		switch input {
		case "1":
			mem.Role = entity.RoleFarmer
		case "2":
			mem.Role = entity.RoleWholesaler
		default:
			return con("Invalid choice.\n1. Farmer\n2. Wholesaler"), nil, nil
		}
		mem.Level = registrationName
		return con(promptName), nil, nil

	case registrationName:
		name := strings.TrimSpace(input)
		if name == "" {
			return con(promptName), nil, nil
		}
		mem.Name = name
		mem.Level = registrationDistrict
		return con(promptDistrict), nil, nil

	case registrationDistrict:
		acct, err := e.accounts.Register(ctx, service.Registration{
			Phone:    msisdn,
			Name:     mem.Name,
			Role:     mem.Role,
			District: input,
		})
		if errors.Is(err, service.ErrUnknownDistrict) {
			slog.Info("Registration with unknown district", "district", input)
			return con("Invalid district. " + promptDistrict), nil, nil
		}
		if err != nil {
			return reply{}, nil, fmt.Errorf("failed to register: %w", err)
		}
		return reply{}, acct, nil
	}
	return reply{}, nil, fmt.Errorf("unknown registration level %q", mem.Level)
}

func (m RegistrationMemory) render() reply {
	switch m.Level {
	case registrationName:
		return con(promptName)
	case registrationDistrict:
		return con(promptDistrict)
	}
	return con(promptRole)
}
