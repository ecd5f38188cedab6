package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	"github.com/huangang/feedbackbot/pkg/logger"
)

const reportFont = "report"

// ReportService renders analytics into a PDF document.
type ReportService struct {
	analytics *AnalyticsService
	fontPath  string
	tempDir   string
}

// NewReportService uses the TTF at fontPath for non-Latin text when set, the core Helvetica otherwise.
func NewReportService(analytics *AnalyticsService, fontPath string) *ReportService {
	return &ReportService{analytics: analytics, fontPath: fontPath, tempDir: os.TempDir()}
}

// ReportFileName is the document name shown to the recipient. eventID 0 means all events.
func ReportFileName(eventID uint, now time.Time) string {
	if eventID == 0 {
		return fmt.Sprintf("report_all_%s.pdf", now.Format("2006-01-02"))
	}
	return fmt.Sprintf("report_event_%d_%s.pdf", eventID, now.Format("2006-01-02"))
}

// Generate writes the report to a fresh temp file and returns its path. The caller removes it.
func (s *ReportService) Generate(ctx context.Context, eventID uint) (string, error) {
	path := filepath.Join(s.tempDir, "feedback_report_"+uuid.NewString()+".pdf")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	if err := s.Write(ctx, f, eventID); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	logger.Info().Str("path", path).Uint("event_id", eventID).Msg("[Report] Generated")
	return path, nil
}

// Write renders the report for one event, or for all events when eventID is 0.
func (s *ReportService) Write(ctx context.Context, w io.Writer, eventID uint) error {
	var events []EventStats
	var general *GeneralStats
	if eventID == 0 {
		var err error
		if general, err = s.analytics.GeneralStats(ctx); err != nil {
			return err
		}
		if events, err = s.analytics.AllEventStats(ctx); err != nil {
			return err
		}
	} else {
		st, err := s.analytics.EventStats(ctx, eventID)
		if err != nil {
			return err
		}
		events = []EventStats{*st}
	}

	doc := s.newDocument()
	title := "Feedback report: all events"
	if eventID != 0 {
		title = "Feedback report: " + events[0].Event.Name
	}
	doc.title(title)
	doc.line(fmt.Sprintf("Generated %s", time.Now().Format("2006-01-02 15:04")))

	if general != nil {
		doc.heading("Overview")
		doc.kv("Events", fmt.Sprintf("%d (%d active, %d closed)", general.TotalEvents, general.ActiveEvents, general.ClosedEvents))
		doc.kv("Questions", fmt.Sprint(general.TotalFeedbacks))
		doc.kv("Ratings", fmt.Sprint(general.TotalRatings))
		doc.kv("Average rating", formatAverage(general.AvgRating))
		doc.kv("Users", fmt.Sprintf("%d (%d managers, %d admins)", general.TotalUsers, general.TotalManagers, general.TotalAdmins))
		for i, top := range general.TopEvents {
			doc.kv(fmt.Sprintf("Top %d", i+1), fmt.Sprintf("%s: %.2f (%d ratings)", top.Name, top.AvgRating, top.Count))
		}
	}

	for i := range events {
		doc.event(&events[i])
	}

	return doc.pdf.Output(w)
}

type reportDoc struct {
	pdf  *fpdf.Fpdf
	font string
	tr   func(string) string
}

func (s *ReportService) newDocument() *reportDoc {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	doc := &reportDoc{pdf: pdf, font: "Helvetica", tr: pdf.UnicodeTranslatorFromDescriptor("")}
	if s.fontPath != "" {
		if _, err := os.Stat(s.fontPath); err == nil {
			pdf.AddUTF8Font(reportFont, "", s.fontPath)
			pdf.AddUTF8Font(reportFont, "B", s.fontPath)
			doc.font = reportFont
			doc.tr = func(s string) string { return s }
		} else {
			logger.Warn().Err(err).Str("path", s.fontPath).Msg("[Report] Font not found, using Helvetica")
		}
	}
	pdf.AddPage()
	return doc
}

func (d *reportDoc) title(text string) {
	d.pdf.SetFont(d.font, "B", 18)
	d.pdf.SetTextColor(44, 62, 80)
	d.pdf.MultiCell(0, 9, d.tr(text), "", "C", false)
	d.pdf.Ln(2)
}

func (d *reportDoc) heading(text string) {
	d.pdf.Ln(4)
	d.pdf.SetFont(d.font, "B", 14)
	d.pdf.SetTextColor(52, 73, 94)
	d.pdf.CellFormat(0, 8, d.tr(text), "B", 1, "L", false, 0, "")
	d.pdf.Ln(2)
}

func (d *reportDoc) line(text string) {
	d.pdf.SetFont(d.font, "", 10)
	d.pdf.SetTextColor(0, 0, 0)
	d.pdf.MultiCell(0, 5, d.tr(text), "", "L", false)
}

func (d *reportDoc) kv(key, value string) {
	d.pdf.SetFont(d.font, "B", 10)
	d.pdf.SetTextColor(0, 0, 0)
	d.pdf.CellFormat(55, 6, d.tr(key), "", 0, "L", false, 0, "")
	d.pdf.SetFont(d.font, "", 10)
	d.pdf.MultiCell(0, 6, d.tr(value), "", "L", false)
}

func (d *reportDoc) event(st *EventStats) {
	d.heading(st.Event.Name)
	d.kv("Status", st.Event.Status)
	d.kv("Created", st.Event.CreatedAt.Format("2006-01-02 15:04"))
	if st.Event.ClosedAt != nil {
		d.kv("Closed", st.Event.ClosedAt.Format("2006-01-02 15:04"))
	}
	d.kv("Questions", fmt.Sprint(st.TotalFeedbacks))
	for _, status := range sortedKeys(st.FeedbackStatuses) {
		d.kv("  "+status, fmt.Sprint(st.FeedbackStatuses[status]))
	}
	d.kv("Avg. response time", fmt.Sprintf("%.1f h", st.AvgResponseHours))
	d.kv("Ratings", fmt.Sprint(st.TotalRatings))
	d.kv("Average rating", formatAverage(st.AvgRating))
	for v := 5; v >= 1; v-- {
		d.kv(fmt.Sprintf("  %d stars", v), fmt.Sprint(st.RatingDistribution[v]))
	}
	d.kv("NPS", fmt.Sprintf("%.1f (%d promoters, %d passives, %d detractors)",
		st.NPS.Score, st.NPS.Promoters, st.NPS.Passives, st.NPS.Detractors))

	for _, m := range st.TopManagers {
		d.kv("Answered by", fmt.Sprintf("%s: %d", m.Name, m.Count))
	}
	for _, day := range st.FeedbackByDay {
		d.kv("  "+day.Day, fmt.Sprintf("%d questions", day.Count))
	}
	if len(st.Comments) > 0 {
		d.pdf.Ln(2)
		d.pdf.SetFont(d.font, "B", 11)
		d.pdf.CellFormat(0, 7, d.tr("Comments"), "", 1, "L", false, 0, "")
		for _, c := range st.Comments {
			d.line(fmt.Sprintf("[%d/5] %s", c.Rating, c.Comment))
		}
	}
}

func formatAverage(v float64) string {
	if v == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f / 5", v)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
