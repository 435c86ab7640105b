package tracker

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/thwithaphisek/student-behavior-api/internal/models"
)

// The issue title and body are the only place the student identity and the
// behavior text are persisted; the tracker has no custom fields for them.
// Decoding is pattern extraction over a fixed template: a marker that is
// missing yields a missing field, never an error.

const (
	markerStudentNumber = "**เลขที่:**"
	headerBehavior      = "### ✨ พฤติกรรมความดี"
	sectionPrefix       = "###"
)

// titlePattern captures "<glyph> <name> (<id>) - <classroom>". The leading
// non-greedy group swallows the score glyph whatever it is.
var titlePattern = regexp.MustCompile(`^.+?\s(.+?)\s\((.+?)\)\s-\s(.+?)$`)

var scoreGlyphs = map[int]string{
	1: "⭐",
	2: "🌟",
	3: "✨",
	4: "💫",
	5: "🏆",
}

// ScoreGlyph returns the title symbol for a score, defaulting to the
// single-star glyph for anything outside the known set.
func ScoreGlyph(score int) string {
	if glyph, ok := scoreGlyphs[score]; ok {
		return glyph
	}
	return "⭐"
}

// EncodedIssue is the title/body pair pushed to the tracker.
type EncodedIssue struct {
	Title string
	Body  string
}

// EncodeIssue renders a record into the fixed Thai issue template.
func EncodeIssue(rec models.BehaviorRecord, schoolName string, now time.Time) EncodedIssue {
	title := fmt.Sprintf("%s %s (%s) - %s", ScoreGlyph(int(rec.Score)), rec.FullName, rec.StudentID, rec.Classroom)

	var b strings.Builder
	b.WriteString("## 📝 รายละเอียดพฤติกรรมความดี\n\n")
	b.WriteString("### 👤 ข้อมูลนักเรียน\n")
	fmt.Fprintf(&b, "- **รหัสนักเรียน:** %s\n", rec.StudentID)
	fmt.Fprintf(&b, "- %s %s\n", markerStudentNumber, rec.StudentNumber)
	fmt.Fprintf(&b, "- **ชื่อ-นามสกุล:** %s\n", rec.FullName)
	fmt.Fprintf(&b, "- **ห้อง:** %s\n\n", rec.Classroom)
	b.WriteString(headerBehavior + "\n")
	b.WriteString(rec.GoodBehavior + "\n\n")
	b.WriteString("### ⭐ การประเมิน\n")
	fmt.Fprintf(&b, "- **คะแนนที่ได้รับ:** %.0f คะแนน\n", rec.Score)
	fmt.Fprintf(&b, "- **ครูผู้ลงทะเบียน:** %s\n", rec.TeacherName)
	fmt.Fprintf(&b, "- **วันที่ส่ง:** %s\n\n", FormatThaiDateTime(now))
	b.WriteString("---\n")
	fmt.Fprintf(&b, "*ระบบลงทะเบียนพฤติกรรมความดี - %s*\n", schoolName)

	return EncodedIssue{Title: title, Body: b.String()}
}

// DecodeTitle extracts name, student ID and classroom from an issue title.
// A non-matching title leaves the record untouched. An already-merged
// classroom field value wins over the title's copy.
func DecodeTitle(title string, rec *models.BehaviorRecord) {
	match := titlePattern.FindStringSubmatch(title)
	if match == nil {
		return
	}
	rec.FullName = match[1]
	rec.StudentID = match[2]
	if rec.Classroom == "" {
		rec.Classroom = match[3]
	}
}

// DecodeBody scans an issue body for the student-number marker and the
// behavior section header. The behavior text is the line immediately after
// the header line; multi-line entries are recovered by ExtractBehavior.
func DecodeBody(body string, rec *models.BehaviorRecord) {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if strings.Contains(line, markerStudentNumber) {
			idx := strings.Index(line, markerStudentNumber)
			rec.StudentNumber = strings.TrimSpace(line[idx+len(markerStudentNumber):])
		}
		if strings.Contains(line, headerBehavior) && i+1 < len(lines) {
			rec.GoodBehavior = strings.TrimSpace(lines[i+1])
		}
	}
}

// ExtractBehavior recovers the possibly multi-line behavior text for
// exports: every non-empty line after the behavior section header until the
// next section header, trimmed and space-joined.
func ExtractBehavior(body string) string {
	if body == "" {
		return ""
	}

	var parts []string
	inSection := false
	for _, line := range strings.Split(body, "\n") {
		if strings.Contains(line, headerBehavior) {
			inSection = true
			continue
		}
		if !inSection {
			continue
		}
		if strings.HasPrefix(line, sectionPrefix) {
			break
		}
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}

var thaiMonths = [...]string{
	"มกราคม", "กุมภาพันธ์", "มีนาคม", "เมษายน", "พฤษภาคม", "มิถุนายน",
	"กรกฎาคม", "สิงหาคม", "กันยายน", "ตุลาคม", "พฤศจิกายน", "ธันวาคม",
}

// FormatThaiDate renders a date the way th-TH long form does: day, month
// name, Buddhist-era year.
func FormatThaiDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), thaiMonths[t.Month()-1], t.Year()+543)
}

// FormatThaiDateTime appends the 24-hour clock to the Thai long date.
func FormatThaiDateTime(t time.Time) string {
	return fmt.Sprintf("%s %02d:%02d", FormatThaiDate(t), t.Hour(), t.Minute())
}
