package views

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	appI18n "github.com/pavelanni/eduquest/internal/i18n"
	"github.com/pavelanni/eduquest/internal/model"
)

// LoginPage renders the sign-in form with an optional error line.
func LoginPage(errMsg string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return page(appI18n.T(ctx, "Login"), func(ctx context.Context, o *out) {
			o.raw(`<div class="card"><h1>`)
			o.text(appI18n.T(ctx, "Login"))
			o.raw(`</h1>`)
			if errMsg != "" {
				o.raw(`<p class="error">`)
				o.text(errMsg)
				o.raw(`</p>`)
			}
			o.raw(`<form method="post" action="`)
			o.text(path(ctx, "/login"))
			o.raw(`">`)
			csrfField(ctx, o)
			o.raw(`<p><label><input type="radio" name="role" value="student" checked> `)
			o.text(appI18n.T(ctx, "LoginAsStudent"))
			o.raw(`</label> <label><input type="radio" name="role" value="teacher"> `)
			o.text(appI18n.T(ctx, "LoginAsTeacher"))
			o.raw(`</label></p><p><label>`)
			o.text(appI18n.T(ctx, "FullName"))
			o.raw(`<br><input name="name" required></label></p><p><label>`)
			o.text(appI18n.T(ctx, "StudentID"))
			o.raw(`<br><input name="student_id"></label></p><p><label>`)
			o.text(appI18n.T(ctx, "TeacherPassword"))
			o.raw(`<br><input type="password" name="password"></label></p><button type="submit">`)
			o.text(appI18n.T(ctx, "Login"))
			o.raw(`</button></form></div>`)
		}).Render(ctx, w)
	})
}

// IndexPage lists the exams a student can take and their past results.
func IndexPage(exams []model.Exam, activeAttempt string, results []model.StoredResult) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return page(appI18n.T(ctx, "AvailableExams"), func(ctx context.Context, o *out) {
			if activeAttempt != "" {
				o.raw(`<div class="card"><a href="`)
				o.text(path(ctx, "/attempts/"+activeAttempt))
				o.raw(`">`)
				o.text(appI18n.T(ctx, "ResumeExam"))
				o.raw(`</a></div>`)
			}
			o.raw(`<h1>`)
			o.text(appI18n.T(ctx, "AvailableExams"))
			o.raw(`</h1>`)
			if len(exams) == 0 {
				o.raw(`<p>`)
				o.text(appI18n.T(ctx, "NoExams"))
				o.raw(`</p>`)
			}
			for _, e := range exams {
				o.raw(`<div class="card"><small>`)
				o.text(e.Category)
				o.raw(`</small><h2>`)
				o.text(e.Title)
				o.raw(`</h2><p>`)
				o.text(e.Description)
				o.raw(`</p><p>`)
				o.text(appI18n.Tp(ctx, "DurationMinutes", e.DurationSeconds/60))
				o.raw(` · `)
				o.text(appI18n.Tp(ctx, "QuestionsCount", len(e.Questions)))
				o.raw(`</p>`)
				if activeAttempt == "" {
					postButton(ctx, o, "/exams/"+e.ID+"/start", "", appI18n.T(ctx, "StartExam"))
				}
				o.raw(`</div>`)
			}
			o.raw(`<h2>`)
			o.text(appI18n.T(ctx, "MyResults"))
			o.raw(`</h2>`)
			resultsTable(ctx, o, results, nil)
		}).Render(ctx, w)
	})
}

func resultsTable(ctx context.Context, o *out, results []model.StoredResult, names map[int64]string) {
	if len(results) == 0 {
		o.raw(`<p>`)
		o.text(appI18n.T(ctx, "NoResults"))
		o.raw(`</p>`)
		return
	}
	o.raw(`<table><tr>`)
	if names != nil {
		o.raw(`<th>`)
		o.text(appI18n.T(ctx, "ColStudent"))
		o.raw(`</th>`)
	}
	for _, col := range []string{"ColExam", "ColScore", "ColCompleted"} {
		o.raw(`<th>`)
		o.text(appI18n.T(ctx, col))
		o.raw(`</th>`)
	}
	o.raw(`</tr>`)
	for _, r := range results {
		o.raw(`<tr>`)
		if names != nil {
			o.raw(`<td>`)
			o.text(names[r.UserID])
			o.raw(`</td>`)
		}
		o.raw(`<td><a href="`)
		o.text(path(ctx, "/results/"+r.AttemptID))
		o.raw(`">`)
		o.text(r.ExamTitle)
		o.raw(`</a></td><td>`)
		o.text(formatPoints(r.Result.Score) + " / " + formatPoints(r.Result.TotalPoints))
		o.raw(`</td><td>`)
		o.text(r.Result.CompletedAt.Format("2006-01-02 15:04"))
		o.raw(`</td></tr>`)
	}
	o.raw(`</table>`)
}

// ExamPage renders the current question of a running attempt.
func ExamPage(snap model.SessionSnapshot, errMsg string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return page(snap.Exam.Title, func(ctx context.Context, o *out) {
			total := len(snap.Exam.Questions)
			progress := (snap.CurrentIndex + 1) * 100 / total
			q := snap.CurrentQuestion()
			chosen, answered := snap.Answers.Get(q.ID)
			base := "/attempts/" + snap.AttemptID

			o.raw(`<div class="card"><div style="display:flex;justify-content:space-between"><h2>`)
			o.text(snap.Exam.Title)
			timerClass := "timer"
			if snap.RemainingSeconds < 60 {
				timerClass += " urgent"
			}
			o.rawf(`</h2><span id="timer" class="%s" data-remaining="%d">`, timerClass, snap.RemainingSeconds)
			o.text(Clock(snap.RemainingSeconds))
			o.rawf(`</span></div><div class="bar"><div style="width:%d%%"></div></div><p><small>`, progress)
			o.text(appI18n.Td(ctx, "QuestionOfTotal", map[string]any{"Current": snap.CurrentIndex + 1, "Total": total}))
			o.raw(` · `)
			o.text(appI18n.Td(ctx, "Progress", map[string]any{"Percent": progress}))
			o.raw(`</small></p></div>`)

			if errMsg != "" {
				o.raw(`<p class="error">`)
				o.text(errMsg)
				o.raw(`</p>`)
			}

			o.raw(`<div class="card"><small>`)
			o.text(appI18n.Td(ctx, "QuestionLabel", map[string]any{"N": snap.CurrentIndex + 1}))
			o.raw(`</small><h3>`)
			o.text(q.Prompt)
			o.raw(`</h3><form method="post" action="`)
			o.text(path(ctx, base+"/answer"))
			o.raw(`">`)
			csrfField(ctx, o)
			o.raw(`<input type="hidden" name="question_id" value="` + strconv.Itoa(q.ID) + `">`)
			for idx, opt := range q.Options {
				class := "option"
				if answered && chosen == idx {
					class += " chosen"
				}
				o.rawf(`<button type="submit" name="option" value="%d" class="%s"><span class="letter">%s</span><span>`,
					idx, class, OptionLetter(idx))
				o.text(opt)
				o.raw(`</span></button>`)
			}
			o.raw(`</form></div><div class="card" style="display:flex;justify-content:space-between">`)
			if snap.CurrentIndex > 0 {
				postButton(ctx, o, base+"/previous", "", appI18n.T(ctx, "Previous"))
			} else {
				o.raw(`<span></span>`)
			}
			o.raw(`<span>`)
			postButton(ctx, o, base+"/cancel", "danger", appI18n.T(ctx, "CancelExam"))
			o.raw(` `)
			if snap.IsLast() {
				postButton(ctx, o, base+"/submit", "", appI18n.T(ctx, "Submit"))
			} else {
				postButton(ctx, o, base+"/next", "", appI18n.T(ctx, "Next"))
			}
			o.raw(`</span></div>`)
			o.raw(`<script>(function(){var t=document.getElementById("timer");var s=+t.dataset.remaining;` +
				`setInterval(function(){if(s<=0){location.reload();return}s--;` +
				`t.textContent=String(Math.floor(s/60)).padStart(2,"0")+":"+String(s%60).padStart(2,"0");` +
				`if(s<60)t.classList.add("urgent")},1000)})();</script>`)
		}).Render(ctx, w)
	})
}

// ResultPage shows a graded attempt and its feedback.
func ResultPage(owner string, r model.StoredResult) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return page(r.ExamTitle, func(ctx context.Context, o *out) {
			o.raw(`<div class="card" style="text-align:center"><h1>`)
			o.text(appI18n.T(ctx, "ExamCompleted"))
			o.raw(`</h1><p>`)
			o.text(appI18n.Td(ctx, "ResultFor", map[string]any{"Name": owner}))
			o.raw(`</p><h2>`)
			o.text(r.ExamTitle)
			o.raw(`</h2><p class="timer">`)
			o.text(appI18n.Td(ctx, "ScoreLine", map[string]any{
				"Score": formatPoints(r.Result.Score),
				"Total": formatPoints(r.Result.TotalPoints),
			}))
			o.raw(`</p><p>`)
			o.text(appI18n.Td(ctx, "Percentage", map[string]any{
				"Percent": strconv.FormatFloat(r.Result.Percent(), 'f', 1, 64),
			}))
			o.raw(`</p></div><div class="card"><h3>`)
			o.text(appI18n.T(ctx, "AIFeedback"))
			o.raw(`</h3>`)
			if r.FeedbackSet {
				o.raw(`<p style="white-space:pre-wrap">`)
				o.text(r.Feedback)
				o.raw(`</p>`)
			} else {
				o.raw(`<p><em>`)
				o.text(appI18n.T(ctx, "FeedbackPending"))
				o.raw(`</em></p>`)
			}
			o.raw(`</div><a href="`)
			o.text(path(ctx, "/"))
			o.raw(`">`)
			o.text(appI18n.T(ctx, "BackToExams"))
			o.raw(`</a>`)
		}).Render(ctx, w)
	})
}

// TeacherPage lists exams with delete buttons, the authoring form and all results.
func TeacherPage(exams []model.Exam, results []model.StoredResult, names map[int64]string, formErr string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return page(appI18n.T(ctx, "TeacherDashboard"), func(ctx context.Context, o *out) {
			o.raw(`<h1>`)
			o.text(appI18n.T(ctx, "TeacherDashboard"))
			o.raw(`</h1>`)
			for _, e := range exams {
				o.raw(`<div class="card"><strong>`)
				o.text(e.Title)
				o.raw(`</strong> <small>`)
				o.text(e.Category + " · " + appI18n.Tp(ctx, "QuestionsCount", len(e.Questions)) +
					" · " + appI18n.Tp(ctx, "DurationMinutes", e.DurationSeconds/60))
				o.raw(`</small> `)
				postButton(ctx, o, "/teacher/exams/"+e.ID+"/delete", "danger", appI18n.T(ctx, "DeleteExam"))
				o.raw(`</div>`)
			}

			o.raw(`<div class="card"><h2>`)
			o.text(appI18n.T(ctx, "CreateExam"))
			o.raw(`</h2>`)
			if formErr != "" {
				o.raw(`<p class="error">`)
				o.text(formErr)
				o.raw(`</p>`)
			}
			o.raw(`<form method="post" action="`)
			o.text(path(ctx, "/teacher/exams"))
			o.raw(`">`)
			csrfField(ctx, o)
			for _, f := range []struct{ name, label, typ string }{
				{"title", "ExamTitle", "text"},
				{"description", "ExamDescription", "text"},
				{"category", "ExamCategory", "text"},
				{"duration_minutes", "ExamDuration", "number"},
			} {
				o.raw(`<p><label>`)
				o.text(appI18n.T(ctx, f.label))
				o.raw(`<br><input type="` + f.typ + `" name="` + f.name + `"></label></p>`)
			}
			o.raw(`<p><label>`)
			o.text(appI18n.T(ctx, "QuestionsJSON"))
			o.raw(`<br><textarea name="questions" rows="10" cols="60"></textarea></label><br><small>`)
			o.text(appI18n.T(ctx, "QuestionsJSONHelp"))
			o.raw(`</small></p><button type="submit">`)
			o.text(appI18n.T(ctx, "SaveExam"))
			o.raw(`</button></form></div><h2>`)
			o.text(appI18n.T(ctx, "AllResults"))
			o.raw(`</h2>`)
			if names == nil {
				names = map[int64]string{}
			}
			resultsTable(ctx, o, results, names)
		}).Render(ctx, w)
	})
}
