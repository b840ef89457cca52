package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

type sampleRequest struct {
	ID    string `param:"id" json:"-"`
	Kind  string `json:"kind" validate:"required"`
	Width int    `json:"width" default:"275" validate:"gte=1"`
	Group string `json:"group" validate:"omitempty,oneof=1 2 3"`
}

func bind(t *testing.T, body string) (*sampleRequest, []ValidationError) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/x/p1", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("p1")
	var r sampleRequest
	return &r, ReadAndValidateRequest(c, &r)
}

func TestReadAndValidateRequest(t *testing.T) {
	r, errs := bind(t, `{"kind":"chart"}`)
	if errs != nil {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if r.ID != "p1" || r.Width != 275 {
		t.Fatalf("bind/defaults failed: %+v", r)
	}

	_, errs = bind(t, `{"group":"7"}`)
	if len(errs) != 2 {
		t.Fatalf("errs = %+v", errs)
	}
	byField := map[string]ValidationError{}
	for _, e := range errs {
		byField[e.Field] = e
	}
	if byField["kind"].Code != "ERR_REQUIRED" || byField["group"].Code != "ERR_ONEOF" {
		t.Fatalf("errs = %+v", errs)
	}

	_, errs = bind(t, `{`)
	if len(errs) != 1 || errs[0].Code != "ERR_UNKNOWN" {
		t.Fatalf("malformed body errs = %+v", errs)
	}
}

func TestValidate(t *testing.T) {
	v := sampleRequest{Kind: "chart"}
	if errs := Validate(&v); errs != nil || v.Width != 275 {
		t.Fatalf("Validate = %+v, %+v", errs, v)
	}
}

func TestAppErrorResponse(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	err := NotFoundError("panel not found").WithParam("panel", "p9").WithError(errors.New("inner"))
	if err := AppErrorResponse(c, err); err != nil {
		t.Fatalf("write: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != 404 || len(body.Data) != 1 || body.Data[0].Code != "ERR_NOT_FOUND" || body.Data[0].Params["panel"] != "p9" {
		t.Fatalf("body = %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	_ = AppErrorResponse(c, errors.New("plain"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("plain error status = %d", rec.Code)
	}
}

func TestClientSendAndParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "fail" {
			http.Error(w, "nope", http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"q": r.URL.Query().Get("q"), "accept": r.Header.Get("Accept")})
	}))
	defer srv.Close()

	c := NewClient()
	var out map[string]string
	err := c.SendAndParse(context.Background(), &RequestOptions{
		Method:      MethodGet,
		URL:         srv.URL,
		QueryParams: map[string][]string{"q": {"aapl"}},
	}, &out)
	if err != nil || out["q"] != "aapl" || out["accept"] != "application/json" {
		t.Fatalf("out = %v, err = %v", out, err)
	}

	err = c.SendAndParse(context.Background(), &RequestOptions{
		Method:      MethodGet,
		URL:         srv.URL,
		QueryParams: map[string][]string{"q": {"fail"}},
	}, &out)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadGateway {
		t.Fatalf("err = %v", err)
	}
}
