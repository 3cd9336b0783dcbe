package backend

import (
	"context"
	"net/http"

	"asset-console/internal/model"
)

type userWire struct {
	ID       flexID `json:"id"`
	UserID   flexID `json:"userId"`
	Username string `json:"username"`
	UserName string `json:"userName"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func (w userWire) toModel() model.User {
	id := string(w.ID)
	if id == "" {
		id = string(w.UserID)
	}
	name := w.Username
	if name == "" {
		name = w.UserName
	}
	return model.User{ID: id, Username: name, Email: w.Email, Role: model.Role(w.Role)}
}

// Login authenticates with username and password. The backend answers with a
// session cookie, which the client's jar keeps for later calls.
func (c *Client) Login(ctx context.Context, in model.LoginRequest) error {
	req, err := jsonRequest("login", http.MethodPost, "/Auth/Login", in)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, req)
	return err
}

func (c *Client) UserInfo(ctx context.Context) (model.User, error) {
	const op = "user info"

	resp, err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/Auth/GetUserInfo"})
	if err != nil {
		return model.User{}, err
	}

	var wire userWire
	if err := decodeJSON(op, resp.body, &wire); err != nil {
		return model.User{}, err
	}
	return wire.toModel(), nil
}

func (c *Client) Register(ctx context.Context, in model.RegisterRequest) error {
	req, err := jsonRequest("register", http.MethodPost, "/Auth/Register", in)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, req)
	return err
}
