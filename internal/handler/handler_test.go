package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/eduquest/internal/attempt"
	appI18n "github.com/pavelanni/eduquest/internal/i18n"
	"github.com/pavelanni/eduquest/internal/model"
	"github.com/pavelanni/eduquest/internal/store"
)

const teacherPassword = "s3cret"

type testEnv struct {
	store  *store.Store
	server *httptest.Server
}

func sampleExam() model.Exam {
	return model.Exam{
		ID:              "exam-1",
		Title:           "Basic Arithmetic",
		Description:     "Warm-up",
		DurationSeconds: 60,
		Category:        "Math",
		CreatedAt:       time.Now(),
		Questions: []model.Question{
			{ID: 1, Prompt: "What is 1 + 1?", Options: []string{"2", "3"}, CorrectOptionIndex: 0, Points: 1},
			{ID: 2, Prompt: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectOptionIndex: 1, Points: 2},
		},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	require.NoError(t, appI18n.Init("en"))

	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.SaveExam(context.Background(), sampleExam()))

	hash, err := bcrypt.GenerateFromPassword([]byte(teacherPassword), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = st.CreateUser(model.User{
		Username:     TeacherUsername,
		DisplayName:  "Teacher",
		PasswordHash: string(hash),
		Role:         model.UserRoleTeacher,
		Active:       true,
	})
	require.NoError(t, err)

	mgr := attempt.New(attempt.Config{
		Exams:   st,
		Results: st,
		// Time never passes unless a test drives it.
		Ticks: func() <-chan time.Time { return make(chan time.Time) },
	})
	t.Cleanup(mgr.Close)

	h := New(st, mgr, model.ExamConfig{Lang: "en"})
	r := chi.NewRouter()
	r.Use(appI18n.Middleware())
	r.Use(h.BasePathMiddleware)
	h.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{store: st, server: srv}
}

type client struct {
	t    *testing.T
	env  *testEnv
	http *http.Client
}

func (e *testEnv) client(t *testing.T) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{
		t:   t,
		env: e,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *client) get(path string) (int, string, string) {
	c.t.Helper()
	resp, err := c.http.Get(c.env.server.URL + path)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, resp.Header.Get("Location"), string(body)
}

func (c *client) csrf() string {
	u, _ := url.Parse(c.env.server.URL)
	for _, ck := range c.http.Jar.Cookies(u) {
		if ck.Name == csrfCookieName {
			return ck.Value
		}
	}
	return ""
}

func (c *client) post(path string, form url.Values) (int, string, string) {
	c.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	if form.Get("csrf_token") == "" {
		form.Set("csrf_token", c.csrf())
	}
	resp, err := c.http.PostForm(c.env.server.URL+path, form)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, resp.Header.Get("Location"), string(body)
}

func (c *client) loginStudent(name, studentID string) {
	c.t.Helper()
	c.get("/login")
	code, loc, _ := c.post("/login", url.Values{
		"role": {"student"}, "name": {name}, "student_id": {studentID},
	})
	require.Equal(c.t, http.StatusSeeOther, code)
	require.Equal(c.t, "/", loc)
}

func (c *client) loginTeacher(password string) int {
	c.t.Helper()
	c.get("/login")
	code, _, _ := c.post("/login", url.Values{"role": {"teacher"}, "password": {password}})
	return code
}

func (c *client) startExam(examID string) string {
	c.t.Helper()
	code, loc, _ := c.post("/exams/"+examID+"/start", nil)
	require.Equal(c.t, http.StatusSeeOther, code)
	require.True(c.t, strings.HasPrefix(loc, "/attempts/"), "redirect to %q", loc)
	return strings.TrimPrefix(loc, "/attempts/")
}

func TestLoginRequired(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	code, loc, _ := c.get("/")
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/login", loc)
}

func TestCSRFRequired(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.get("/login")

	code, _, _ := c.post("/login", url.Values{
		"csrf_token": {"forged"}, "role": {"student"}, "name": {"An"}, "student_id": {"1"},
	})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestStudentLoginValidation(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.get("/login")

	code, _, body := c.post("/login", url.Values{"role": {"student"}, "name": {"An"}})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Contains(t, body, "Invalid name, student ID or password.")
}

func TestStudentExamFlow(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.loginStudent("Nguyen Van An", "SV001")

	code, _, body := c.get("/")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Basic Arithmetic")
	assert.Contains(t, body, "1 minute")
	assert.Contains(t, body, "2 questions")

	id := c.startExam("exam-1")

	code, _, body = c.get("/attempts/" + id)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "What is 1 + 1?")
	assert.Contains(t, body, "01:00")
	assert.Contains(t, body, "Question 1 / 2")

	code, _, _ = c.post("/attempts/"+id+"/answer", url.Values{"question_id": {"1"}, "option": {"0"}})
	assert.Equal(t, http.StatusSeeOther, code)

	code, _, body = c.post("/attempts/"+id+"/answer", url.Values{"question_id": {"1"}, "option": {"7"}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body, "That option does not exist.")

	code, _, _ = c.post("/attempts/"+id+"/next", nil)
	assert.Equal(t, http.StatusSeeOther, code)
	_, _, body = c.get("/attempts/" + id)
	assert.Contains(t, body, "What is 2 + 2?")
	assert.Contains(t, body, "Submit")

	c.post("/attempts/"+id+"/answer", url.Values{"question_id": {"2"}, "option": {"1"}})

	code, loc, _ := c.post("/attempts/"+id+"/submit", nil)
	require.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/results/"+id, loc)

	code, _, body = c.get("/results/" + id)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "3 / 3 points")
	assert.Contains(t, body, "100.0%")
	assert.Contains(t, body, "Result for Nguyen Van An")

	// The finished attempt now leads to its result.
	code, loc, _ = c.get("/attempts/" + id)
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/results/"+id, loc)

	code, loc, _ = c.post("/attempts/"+id+"/submit", nil)
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/results/"+id, loc)
}

func TestStartResumesActiveAttempt(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.loginStudent("An", "SV001")

	first := c.startExam("exam-1")
	second := c.startExam("exam-1")
	assert.Equal(t, first, second)

	_, _, body := c.get("/")
	assert.Contains(t, body, "Resume exam")
}

func TestStartUnknownExam(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.loginStudent("An", "SV001")

	code, _, _ := c.post("/exams/nope/start", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCancelLeavesNoResult(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.loginStudent("An", "SV001")

	id := c.startExam("exam-1")
	c.post("/attempts/"+id+"/answer", url.Values{"question_id": {"1"}, "option": {"0"}})

	code, loc, _ := c.post("/attempts/"+id+"/cancel", nil)
	require.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/", loc)

	code, _, _ = c.get("/results/" + id)
	assert.Equal(t, http.StatusNotFound, code)

	results, err := env.store.ListResults(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAttemptsArePrivate(t *testing.T) {
	env := newTestEnv(t)
	alice := env.client(t)
	alice.loginStudent("Alice", "SV001")
	bob := env.client(t)
	bob.loginStudent("Bob", "SV002")

	id := alice.startExam("exam-1")

	code, _, _ := bob.get("/attempts/" + id)
	assert.Equal(t, http.StatusNotFound, code)
	code, _, _ = bob.post("/attempts/"+id+"/submit", nil)
	assert.Equal(t, http.StatusNotFound, code)

	alice.post("/attempts/"+id+"/submit", nil)
	code, _, _ = bob.get("/results/" + id)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTeacherLogin(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusUnauthorized, env.client(t).loginTeacher("wrong"))

	c := env.client(t)
	require.Equal(t, http.StatusSeeOther, c.loginTeacher(teacherPassword))
	code, loc, _ := c.get("/")
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/teacher", loc)

	code, _, body := c.get("/teacher")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Basic Arithmetic")
}

func TestTeacherOnlyRoutes(t *testing.T) {
	env := newTestEnv(t)
	student := env.client(t)
	student.loginStudent("An", "SV001")

	code, _, _ := student.get("/teacher")
	assert.Equal(t, http.StatusForbidden, code)

	teacher := env.client(t)
	teacher.loginTeacher(teacherPassword)
	code, _, _ = teacher.post("/exams/exam-1/start", nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestTeacherCreatesAndDeletesExam(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	require.Equal(t, http.StatusSeeOther, c.loginTeacher(teacherPassword))
	c.get("/teacher")

	code, _, _ := c.post("/teacher/exams", url.Values{
		"title":            {"Geography"},
		"category":         {"Social"},
		"duration_minutes": {"15"},
		"questions":        {`[{"question":"Capital of Vietnam?","options":["Hanoi","Hue"],"correct_answer":0,"points":5}]`},
	})
	require.Equal(t, http.StatusSeeOther, code)

	exams, err := env.store.ListExams(context.Background())
	require.NoError(t, err)
	require.Len(t, exams, 2)
	created := exams[0]
	assert.Equal(t, "Geography", created.Title)
	assert.Equal(t, 15*60, created.DurationSeconds)
	require.Len(t, created.Questions, 1)
	assert.Equal(t, 1, created.Questions[0].ID)

	code, _, _ = c.post("/teacher/exams/"+created.ID+"/delete", nil)
	require.Equal(t, http.StatusSeeOther, code)
	exams, err = env.store.ListExams(context.Background())
	require.NoError(t, err)
	assert.Len(t, exams, 1)
}

func TestTeacherCreateExamRejectsInvalid(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.loginTeacher(teacherPassword)
	c.get("/teacher")

	tests := []struct {
		name string
		form url.Values
	}{
		{"bad duration", url.Values{"title": {"X"}, "duration_minutes": {"soon"}, "questions": {`[]`}}},
		{"bad json", url.Values{"title": {"X"}, "duration_minutes": {"5"}, "questions": {`[{`}}},
		{"no questions", url.Values{"title": {"X"}, "duration_minutes": {"5"}, "questions": {`[]`}}},
		{"answer out of range", url.Values{"title": {"X"}, "duration_minutes": {"5"},
			"questions": {`[{"question":"Q","options":["a"],"correct_answer":3,"points":1}]`}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := c.post("/teacher/exams", tt.form)
			assert.Equal(t, http.StatusBadRequest, code)
		})
	}

	exams, err := env.store.ListExams(context.Background())
	require.NoError(t, err)
	assert.Len(t, exams, 1)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.loginStudent("An", "SV001")

	code, loc, _ := c.post("/logout", nil)
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/login", loc)

	code, loc, _ = c.get("/")
	assert.Equal(t, http.StatusSeeOther, code)
	assert.Equal(t, "/login", loc)
}

func TestGoToClampsAndKeepsAnswers(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.loginStudent("An", "SV001")
	id := c.startExam("exam-1")

	c.post("/attempts/"+id+"/answer", url.Values{"question_id": {"1"}, "option": {"1"}})

	code, _, _ := c.post("/attempts/"+id+"/goto", url.Values{"index": {"99"}})
	require.Equal(t, http.StatusSeeOther, code)
	_, _, body := c.get("/attempts/" + id)
	assert.Contains(t, body, "Question 2 / 2")

	c.post("/attempts/"+id+"/previous", nil)
	_, _, body = c.get("/attempts/" + id)
	assert.Contains(t, body, "Question 1 / 2")
	assert.Contains(t, body, `class="option chosen"`)

	code, _, _ = c.post("/attempts/"+id+"/goto", url.Values{"index": {"first"}})
	assert.Equal(t, http.StatusBadRequest, code)
}
