package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

const testPassword = "password123"

type teamOverview struct {
	Team struct {
		Name    string `json:"name"`
		Slug    string `json:"slug"`
		Members []struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"members"`
	} `json:"team"`
	Role      string `json:"role"`
	SpotsLeft int    `json:"spotsLeft"`
	CanInvite bool   `json:"canInvite"`
}

type invitationLink struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type validation struct {
	Valid    bool   `json:"valid"`
	TeamName string `json:"teamName"`
	Email    string `json:"email"`
	Error    string `json:"error"`
	Reason   string `json:"reason"`
}

func newServer(t *testing.T) *TestServer {
	t.Helper()
	ts, err := NewTestServer()
	if err != nil {
		t.Fatalf("Failed to create test server: %v", err)
	}
	t.Cleanup(ts.Close)
	return ts
}

func doRequest(t *testing.T, ts *TestServer, method, path, body, token string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.Server.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

func doPost(t *testing.T, ts *TestServer, path, body, token string) *http.Response {
	t.Helper()
	return doRequest(t, ts, http.MethodPost, path, body, token)
}

func doGet(t *testing.T, ts *TestServer, path, token string) *http.Response {
	t.Helper()
	return doRequest(t, ts, http.MethodGet, path, "", token)
}

// expect checks the status code and decodes the body into dst when set.
func expect(t *testing.T, resp *http.Response, status int, dst any) {
	t.Helper()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if resp.StatusCode != status {
		t.Fatalf("expected %d, got %d: %s", status, resp.StatusCode, string(body))
	}
	if dst != nil {
		if err := json.Unmarshal(body, dst); err != nil {
			t.Fatalf("failed to decode response %s: %v", string(body), err)
		}
	}
}

func expectError(t *testing.T, resp *http.Response, status int, message string) {
	t.Helper()
	var data struct {
		Error string `json:"error"`
	}
	expect(t, resp, status, &data)
	if data.Error != message {
		t.Fatalf("expected error %q, got %q", message, data.Error)
	}
}

func signupBody(name, email, teamName, inviteToken string) string {
	payload := map[string]string{"name": name, "email": email, "password": testPassword}
	if teamName != "" {
		payload["teamName"] = teamName
	}
	if inviteToken != "" {
		payload["inviteToken"] = inviteToken
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func signup(t *testing.T, ts *TestServer, name, email, teamName, inviteToken string) string {
	t.Helper()
	var data struct {
		Success bool   `json:"success"`
		UserID  string `json:"userId"`
	}
	expect(t, doPost(t, ts, "/signup", signupBody(name, email, teamName, inviteToken), ""), http.StatusOK, &data)
	if !data.Success || data.UserID == "" {
		t.Fatalf("unexpected signup response %+v", data)
	}
	return data.UserID
}

func login(t *testing.T, ts *TestServer, email string) string {
	t.Helper()
	var data struct {
		Token string `json:"token"`
	}
	body := fmt.Sprintf(`{"email": %q, "password": %q}`, email, testPassword)
	expect(t, doPost(t, ts, "/login", body, ""), http.StatusOK, &data)
	if data.Token == "" {
		t.Fatalf("login returned no token")
	}
	return data.Token
}

func invite(t *testing.T, ts *TestServer, session, email string) invitationLink {
	t.Helper()
	body := `{}`
	if email != "" {
		body = fmt.Sprintf(`{"email": %q}`, email)
	}
	var link invitationLink
	expect(t, doPost(t, ts, "/invitations", body, session), http.StatusOK, &link)
	return link
}

func overview(t *testing.T, ts *TestServer, session string) teamOverview {
	t.Helper()
	var data teamOverview
	expect(t, doGet(t, ts, "/team", session), http.StatusOK, &data)
	return data
}

func TestInvitationLifecycle(t *testing.T) {
	ts := newServer(t)

	signup(t, ts, "Olivia Owner", "owner@example.com", "Acme Corp", "")
	session := login(t, ts, "owner@example.com")

	for i := 1; i <= 8; i++ {
		link := invite(t, ts, session, "")
		signup(t, ts, fmt.Sprintf("Member %d", i), fmt.Sprintf("member%d@example.com", i), "", link.Token)
	}

	if got := overview(t, ts, session); len(got.Team.Members) != 9 || got.SpotsLeft != 1 {
		t.Fatalf("expected 9 members and 1 spot, got %d members and %d spots", len(got.Team.Members), got.SpotsLeft)
	}

	link := invite(t, ts, session, "")
	if link.Token == "" {
		t.Fatalf("expected a token")
	}
	if link.URL != testBaseURL+"/signup?invite="+url.QueryEscape(link.Token) {
		t.Fatalf("unexpected url %q", link.URL)
	}
	if d := time.Until(link.ExpiresAt); d < 6*24*time.Hour || d > 7*24*time.Hour+time.Minute {
		t.Fatalf("unexpected expiry %v", link.ExpiresAt)
	}
	spare := invite(t, ts, session, "")

	signup(t, ts, "Tenth Member", "tenth@example.com", "", link.Token)

	got := overview(t, ts, session)
	if len(got.Team.Members) != 10 || got.SpotsLeft != 0 {
		t.Fatalf("expected a full team, got %d members", len(got.Team.Members))
	}

	expectError(t, doPost(t, ts, "/signup", signupBody("Late", "late@example.com", "", link.Token), ""),
		http.StatusBadRequest, "This invitation has already been used")

	expectError(t, doPost(t, ts, "/signup", signupBody("Third", "third@example.com", "", spare.Token), ""),
		http.StatusBadRequest, "This team has reached the maximum of 10 members")

	expectError(t, doPost(t, ts, "/invitations", `{}`, session),
		http.StatusBadRequest, "Your team has reached the maximum of 10 members")

	var users int
	if err := ts.DB.Get(&users, `SELECT COUNT(*) FROM users`); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if users != 10 {
		t.Fatalf("rejected signups must not create users, got %d users", users)
	}
}

func TestValidateInvitation(t *testing.T) {
	ts := newServer(t)

	signup(t, ts, "Olivia Owner", "owner@example.com", "Acme Corp", "")
	session := login(t, ts, "owner@example.com")

	expectError(t, doGet(t, ts, "/invitations", ""), http.StatusBadRequest, "Token is required")

	var v validation
	expect(t, doGet(t, ts, "/invitations?token=nope", ""), http.StatusOK, &v)
	if v.Valid || v.Reason != "not_found" || v.Error != "Invalid invitation link" {
		t.Fatalf("unexpected validation %+v", v)
	}

	link := invite(t, ts, session, "guest@example.com")
	v = validation{}
	expect(t, doGet(t, ts, "/invitations?token="+link.Token, ""), http.StatusOK, &v)
	if !v.Valid || v.TeamName != "Acme Corp" || v.Email != "guest@example.com" {
		t.Fatalf("unexpected validation %+v", v)
	}

	signup(t, ts, "Guest", "guest@example.com", "", link.Token)
	v = validation{}
	expect(t, doGet(t, ts, "/invitations?token="+link.Token, ""), http.StatusOK, &v)
	if v.Valid || v.Reason != "already_used" {
		t.Fatalf("unexpected validation %+v", v)
	}

	stale := invite(t, ts, session, "")
	past := time.Now().Add(-time.Second).UnixMilli()
	if _, err := ts.DB.Exec(`UPDATE invitations SET expires_at = ? WHERE token = ?`, past, stale.Token); err != nil {
		t.Fatalf("expire invitation: %v", err)
	}
	v = validation{}
	expect(t, doGet(t, ts, "/invitations?token="+stale.Token, ""), http.StatusOK, &v)
	if v.Valid || v.Reason != "expired" || v.Error != "This invitation has expired" {
		t.Fatalf("unexpected validation %+v", v)
	}
	expectError(t, doPost(t, ts, "/signup", signupBody("Slow", "slow@example.com", "", stale.Token), ""),
		http.StatusBadRequest, "This invitation link has expired")
	expectError(t, doPost(t, ts, "/signup", signupBody("Lost", "lost@example.com", "", "nope"), ""),
		http.StatusBadRequest, "Invalid invitation link")
}

func TestCreateInvitationRequiresOwnerOrAdmin(t *testing.T) {
	ts := newServer(t)

	signup(t, ts, "Olivia Owner", "owner@example.com", "Acme Corp", "")
	owner := login(t, ts, "owner@example.com")
	link := invite(t, ts, owner, "")
	signup(t, ts, "Mia Member", "member@example.com", "", link.Token)
	member := login(t, ts, "member@example.com")

	var before int
	if err := ts.DB.Get(&before, `SELECT COUNT(*) FROM invitations`); err != nil {
		t.Fatalf("count invitations: %v", err)
	}

	expectError(t, doPost(t, ts, "/invitations", `{}`, member),
		http.StatusForbidden, "Only team owners and admins can send invitations")

	var after int
	if err := ts.DB.Get(&after, `SELECT COUNT(*) FROM invitations`); err != nil {
		t.Fatalf("count invitations: %v", err)
	}
	if after != before {
		t.Fatalf("forbidden request persisted an invitation")
	}

	if got := overview(t, ts, member); got.CanInvite || got.Role != "member" {
		t.Fatalf("unexpected member overview %+v", got)
	}

	expectError(t, doPost(t, ts, "/invitations", `{"email": "not-an-email"}`, owner),
		http.StatusBadRequest, "Invalid email address")
}

func TestAuthenticationRequired(t *testing.T) {
	ts := newServer(t)

	expectError(t, doPost(t, ts, "/invitations", `{}`, ""), http.StatusUnauthorized, "Unauthorized")
	expectError(t, doPost(t, ts, "/invitations", `{}`, "garbage"), http.StatusUnauthorized, "Unauthorized")
	expectError(t, doGet(t, ts, "/team", ""), http.StatusUnauthorized, "Unauthorized")
}

func TestLoginSetsSessionCookie(t *testing.T) {
	ts := newServer(t)

	signup(t, ts, "Olivia Owner", "owner@example.com", "Acme Corp", "")

	resp := doPost(t, ts, "/login", fmt.Sprintf(`{"email": "owner@example.com", "password": %q}`, testPassword), "")
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "devpulse_session" {
			cookie = c
		}
	}
	expect(t, resp, http.StatusOK, nil)
	if cookie == nil || !cookie.HttpOnly {
		t.Fatalf("expected an http-only session cookie")
	}

	req, err := http.NewRequest(http.MethodGet, ts.Server.URL+"/team", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.AddCookie(cookie)
	teamResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	var data teamOverview
	expect(t, teamResp, http.StatusOK, &data)
	if data.Team.Name != "Acme Corp" || data.Role != "owner" || !data.CanInvite {
		t.Fatalf("unexpected overview %+v", data)
	}

	expectError(t, doPost(t, ts, "/login", `{"email": "owner@example.com", "password": "wrong-password"}`, ""),
		http.StatusUnauthorized, "Invalid email or password")
}

func TestSignupValidation(t *testing.T) {
	ts := newServer(t)

	signup(t, ts, "Olivia Owner", "owner@example.com", "Acme Corp", "")

	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{
			name:    "missing team name",
			body:    signupBody("Nina", "nina@example.com", "", ""),
			status:  http.StatusBadRequest,
			message: "Team name is required when creating a new team",
		},
		{
			name:    "duplicate email",
			body:    signupBody("Olivia", "OWNER@example.com", "Other Team", ""),
			status:  http.StatusConflict,
			message: "An account with this email already exists",
		},
		{
			name:    "short password",
			body:    `{"name": "Nina", "email": "nina@example.com", "password": "short", "teamName": "Nina Co"}`,
			status:  http.StatusBadRequest,
			message: "Password must be at least 8 characters",
		},
		{
			name:    "malformed body",
			body:    `{"name": `,
			status:  http.StatusBadRequest,
			message: "Invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, doPost(t, ts, "/signup", tt.body, ""), tt.status, tt.message)
		})
	}
}

func TestTeamsWithSameNameGetDistinctSlugs(t *testing.T) {
	ts := newServer(t)

	signup(t, ts, "First Owner", "first@example.com", "Acme Corp", "")
	signup(t, ts, "Second Owner", "second@example.com", "Acme Corp", "")

	var slugs []string
	if err := ts.DB.Select(&slugs, `SELECT slug FROM teams ORDER BY created_at, slug`); err != nil {
		t.Fatalf("select slugs: %v", err)
	}
	if len(slugs) != 2 || slugs[0] == slugs[1] {
		t.Fatalf("expected two distinct slugs, got %v", slugs)
	}
	for _, s := range slugs {
		if !strings.HasPrefix(s, "acme-corp") {
			t.Fatalf("unexpected slug %q", s)
		}
	}
}

func TestInvitationEmailIsQueued(t *testing.T) {
	ts := newServer(t)

	signup(t, ts, "Olivia Owner", "owner@example.com", "Acme Corp", "")
	session := login(t, ts, "owner@example.com")

	link := invite(t, ts, session, "Guest@Example.com")
	invite(t, ts, session, "")

	if err := ts.DrainMail(); err != nil {
		t.Fatalf("drain mail: %v", err)
	}

	notices := ts.Outbox.Notices()
	if len(notices) != 1 {
		t.Fatalf("expected 1 email, got %d", len(notices))
	}
	n := notices[0]
	if n.To != "guest@example.com" || n.TeamName != "Acme Corp" || n.InviterName != "Olivia Owner" || n.URL != link.URL {
		t.Fatalf("unexpected email %+v", n)
	}
}

func TestConcurrentSignupsWithSameInvitation(t *testing.T) {
	ts := newServer(t)

	signup(t, ts, "Olivia Owner", "owner@example.com", "Acme Corp", "")
	session := login(t, ts, "owner@example.com")
	link := invite(t, ts, session, "")

	const attempts = 6
	statuses := make([]int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := signupBody(fmt.Sprintf("Racer %d", i), fmt.Sprintf("racer%d@example.com", i), "", link.Token)
			resp, err := http.Post(ts.Server.URL+"/signup", "application/json", bytes.NewBufferString(body))
			if err != nil {
				return
			}
			resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, status := range statuses {
		switch status {
		case http.StatusOK:
			ok++
		case http.StatusBadRequest:
		default:
			t.Fatalf("unexpected status %d", status)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one successful signup, got %d", ok)
	}

	if got := overview(t, ts, session); len(got.Team.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(got.Team.Members))
	}
}

func TestHealth(t *testing.T) {
	ts := newServer(t)

	var data map[string]string
	expect(t, doGet(t, ts, "/healthz", ""), http.StatusOK, &data)
	if data["status"] != "ok" {
		t.Fatalf("unexpected health %v", data)
	}
}
