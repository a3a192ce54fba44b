package auth_test

import (
	"context"
	"mime/multipart"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
)

// MockContext mocks the router.Context. Request state is kept in plain
// fields, responses go through the mock so tests can assert on them.
type MockContext struct {
	mock.Mock

	ctx        context.Context
	method     string
	url        string
	headers    map[string]string
	cookies    map[string]string
	params     map[string]string
	locals     map[any]any
	SetCookies []*router.Cookie
	NextCalled bool
}

func newMockContext(method, url string) *MockContext {
	return &MockContext{
		ctx:     context.Background(),
		method:  method,
		url:     url,
		headers: map[string]string{},
		cookies: map[string]string{},
		params:  map[string]string{},
		locals:  map[any]any{},
	}
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	return m.ctx
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.ctx = ctx
}

func (m *MockContext) Method() string {
	return m.method
}

func (m *MockContext) OriginalURL() string {
	return m.url
}

func (m *MockContext) Header(key string) string {
	return m.headers[key]
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if v, ok := m.cookies[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.SetCookies = append(m.SetCookies, cookie)
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if v, ok := m.params[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.locals[key] = value[0]
		return value[0]
	}
	return m.locals[key]
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	args := m.Called(path, status)
	return args.Error(0)
}

func (m *MockContext) Bind(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Status(code int) router.Context {
	args := m.Called(code)
	return args.Get(0).(router.Context)
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *MockContext) Send(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockContext) SendStatus(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) NoContent(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	args := m.Called(name, bind, layout)
	return args.Error(0)
}

func (m *MockContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	args := m.Called(name, data, status)
	return args.Error(0)
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	args := m.Called(fallback, status)
	return args.Error(0)
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	m.headers[key] = val
	return m
}

func (m *MockContext) Referer() string {
	return m.headers["Referer"]
}

func (m *MockContext) CookieParser(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Query(key string, defaultValue ...string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) QueryInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) FormFile(key string) (*multipart.FileHeader, error) {
	args := m.Called(key)
	fh, _ := args.Get(0).(*multipart.FileHeader)
	return fh, args.Error(1)
}

func (m *MockContext) FormValue(key string, defaultValue ...string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) Queries() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

func (m *MockContext) Set(key string, val any) {
	m.locals[key] = val
}

func (m *MockContext) Get(key string, defaultValue any) any {
	if v, ok := m.locals[key]; ok {
		return v
	}
	return defaultValue
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	if v, ok := m.locals[key].(string); ok {
		return v
	}
	return defaultValue
}

func (m *MockContext) GetInt(key string, defaultValue int) int {
	if v, ok := m.locals[key].(int); ok {
		return v
	}
	return defaultValue
}

func (m *MockContext) GetBool(key string, defaultValue bool) bool {
	if v, ok := m.locals[key].(bool); ok {
		return v
	}
	return defaultValue
}

var _ router.Context = (*MockContext)(nil)

// lastCookie returns the most recent cookie written with name
func (m *MockContext) lastCookie(name string) *router.Cookie {
	for i := len(m.SetCookies) - 1; i >= 0; i-- {
		if m.SetCookies[i].Name == name {
			return m.SetCookies[i]
		}
	}
	return nil
}

// jsonBody returns the payload of the last JSON response
func (m *MockContext) jsonBody() router.ViewContext {
	for i := len(m.Calls) - 1; i >= 0; i-- {
		call := m.Calls[i]
		if call.Method != "JSON" {
			continue
		}
		body, _ := call.Arguments.Get(1).(router.ViewContext)
		return body
	}
	return nil
}
