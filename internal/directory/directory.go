// Package directory answers "is this person in the staff group". The web
// layer depends only on the Checker interface; the Google Workspace
// implementation is the deployment wiring.
package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	goauth "golang.org/x/oauth2/google"
	admin "google.golang.org/api/admin/directory/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Decision is the result of a membership probe.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Group   string `json:"group"`
	Reason  string `json:"reason,omitempty"`
}

type Checker interface {
	Check(ctx context.Context, email string) (Decision, error)
}

// GoogleChecker verifies membership of one Workspace group via the Admin
// SDK. The service account must impersonate a Workspace admin; group
// membership is not readable by a bare service account.
type GoogleChecker struct {
	svc   *admin.Service
	group string
}

func NewGoogleChecker(ctx context.Context, credJSON []byte, impersonate, group string) (*GoogleChecker, error) {
	if group == "" {
		return nil, errors.New("directory: staff group is not configured")
	}
	cfg, err := goauth.JWTConfigFromJSON(credJSON, admin.AdminDirectoryGroupMemberReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("directory: parsing service account key: %w", err)
	}
	cfg.Subject = impersonate

	svc, err := admin.NewService(ctx, option.WithTokenSource(cfg.TokenSource(ctx)))
	if err != nil {
		return nil, fmt.Errorf("directory: creating admin service: %w", err)
	}
	return &GoogleChecker{svc: svc, group: group}, nil
}

func (c *GoogleChecker) Check(ctx context.Context, email string) (Decision, error) {
	res, err := c.svc.Members.HasMember(c.group, email).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return Decision{Group: c.group, Reason: "not a known member of the directory"}, nil
		}
		return Decision{}, fmt.Errorf("directory: checking membership of %s: %w", email, err)
	}
	d := Decision{Allowed: res.IsMember, Group: c.group}
	if !d.Allowed {
		d.Reason = "not a member of the staff group"
	}
	return d, nil
}
