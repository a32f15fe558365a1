package domain

import "time"

// NoAnswer marks a question the student left unanswered. Only the forced
// (timer expiry) submission path accepts it; it never matches a correct option.
const NoAnswer = -1

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correctOption"`
	Points        int      `json:"points,omitempty"` // overrides QuizSpec.PointsPerQuestion when > 0
}

// QuizSpec is a mentor-authored quiz as seen by the attempt engine.
type QuizSpec struct {
	ID                      string     `json:"id"`
	MentorID                string     `json:"mentorId"`
	Subject                 string     `json:"subject"`
	PointsPerQuestion       int        `json:"pointsPerQuestion"`
	AllowedAttempts         int        `json:"allowedAttempts"`
	PerQuestionTimerMinutes int        `json:"perQuestionTimerMinutes"`
	Published               bool       `json:"published"`
	Questions               []Question `json:"questions"`
}

// TotalQuestions is the number of answers a complete submission carries.
func (q QuizSpec) TotalQuestions() int {
	return len(q.Questions)
}

// QuestionPoints returns the value of question i.
func (q QuizSpec) QuestionPoints(i int) int {
	if p := q.Questions[i].Points; p > 0 {
		return p
	}
	return q.PointsPerQuestion
}

// TotalPossibleScore is the score of an all-correct submission.
func (q QuizSpec) TotalPossibleScore() int {
	total := 0
	for i := range q.Questions {
		total += q.QuestionPoints(i)
	}
	return total
}

// Editable reports whether the authoring flow may still change the quiz.
// Publishing locks editing; it does not affect taking the quiz.
func (q QuizSpec) Editable() bool {
	return !q.Published
}

// Timed reports whether attempts on this quiz run against a deadline.
func (q QuizSpec) Timed() bool {
	return q.PerQuestionTimerMinutes > 0
}

// AttemptRecord is the immutable result of one submission.
type AttemptRecord struct {
	AttemptNumber int       `json:"attemptNumber"`
	Score         int       `json:"score"`
	Timestamp     time.Time `json:"timestamp"`
	Forced        bool      `json:"forced,omitempty"`
}

// Ledger is the per (student, quiz) record of attempts plus derived scores.
type Ledger struct {
	StudentID          string          `json:"studentId"`
	QuizID             string          `json:"quizId"`
	AttemptsUsed       int             `json:"attemptsUsed"`
	Attempts           []AttemptRecord `json:"attempts"`
	BestScore          int             `json:"bestScore"`
	BestAttemptNumber  int             `json:"bestAttemptNumber"`
	BestScoreTimestamp time.Time       `json:"bestScoreTimestamp"`
	LastScore          int             `json:"lastScore"`
}

// NewLedger returns the zero-valued ledger used when none has been stored yet.
func NewLedger(studentID, quizID string) Ledger {
	return Ledger{StudentID: studentID, QuizID: quizID}
}

// HasAttempts separates "never attempted" from "attempted and scored 0".
func (l Ledger) HasAttempts() bool {
	return len(l.Attempts) > 0
}

// Best returns the best score and whether one exists.
func (l Ledger) Best() (int, bool) {
	return l.BestScore, l.HasAttempts()
}

// Last returns the most recent score and whether one exists.
func (l Ledger) Last() (int, bool) {
	return l.LastScore, l.HasAttempts()
}

// Clone returns a deep copy so callers can mutate without aliasing the attempts slice.
func (l Ledger) Clone() Ledger {
	out := l
	if l.Attempts != nil {
		out.Attempts = make([]AttemptRecord, len(l.Attempts))
		copy(out.Attempts, l.Attempts)
	}
	return out
}

// AttemptFact is the quiz-scoped, append-only copy of an attempt consumed by the leaderboard.
type AttemptFact struct {
	ID            string    `json:"id"`
	QuizID        string    `json:"quizId"`
	StudentID     string    `json:"studentId"`
	AttemptNumber int       `json:"attemptNumber"`
	Score         int       `json:"score"`
	Timestamp     time.Time `json:"timestamp"`
}

// StudentName is the resolved display name of a student.
type StudentName struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// FullName joins first and last name the way the leaderboard compares them.
func (n StudentName) FullName() string {
	return n.FirstName + " " + n.LastName
}

// PlaceholderName is used when a student's profile cannot be resolved.
func PlaceholderName(studentID string) StudentName {
	suffix := studentID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return StudentName{FirstName: "Student", LastName: "#" + suffix}
}

// LeaderboardRow is one student's computed standing on a quiz.
type LeaderboardRow struct {
	Rank               int       `json:"rank"`
	StudentID          string    `json:"studentId"`
	FirstName          string    `json:"firstName"`
	LastName           string    `json:"lastName"`
	BestScore          int       `json:"bestScore"`
	BestAttemptNumber  int       `json:"bestAttemptNumber"`
	BestScoreTimestamp time.Time `json:"bestScoreTimestamp"`
	TotalAttempts      int       `json:"totalAttempts"`
	AverageScore       float64   `json:"averageScore"`
	CompletionRate     float64   `json:"completionRate"` // percent of TotalPossibleScore
}

// Leaderboard captures the ordered standings for a quiz.
type Leaderboard struct {
	QuizID        string           `json:"quizId"`
	TotalPossible int              `json:"totalPossible"`
	Rows          []LeaderboardRow `json:"rows"`
	Excluded      int              `json:"excluded"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// QuizSummary aggregates a quiz for the mentor dashboard.
type QuizSummary struct {
	QuizID           string  `json:"quizId"`
	Subject          string  `json:"subject"`
	Published        bool    `json:"published"`
	TotalStudents    int     `json:"totalStudents"`
	TotalAttempts    int     `json:"totalAttempts"`
	AverageBestScore float64 `json:"averageBestScore"`
}

// AttemptSession is an attempt the student has started but not yet submitted.
type AttemptSession struct {
	StudentID string    `json:"studentId"`
	QuizID    string    `json:"quizId"`
	Selected  []int     `json:"selected"`
	StartedAt time.Time `json:"startedAt"`
	Deadline  time.Time `json:"deadline,omitempty"` // zero for untimed quizzes
}

// Expired reports whether a timed session has run out at now.
func (s AttemptSession) Expired(now time.Time) bool {
	return !s.Deadline.IsZero() && !now.Before(s.Deadline)
}
