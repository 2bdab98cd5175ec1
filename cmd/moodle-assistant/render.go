package main

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"text/tabwriter"
	"time"

	"moodle-assistant/internal/courses"
	"moodle-assistant/internal/models"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCourseTable(w io.Writer, list []models.Course) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tSHORT NAME\tFULL NAME\tVISIBLE")
	for _, c := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", c.ID, c.Shortname, c.Fullname, yesNo(c.IsVisible()))
	}
	return tw.Flush()
}

func writeContents(w io.Writer, sections []models.CourseContent) {
	if len(sections) == 0 {
		fmt.Fprintln(w, "This course has no sections")
		return
	}
	for _, section := range sections {
		fmt.Fprintf(w, "== %s\n", section.Name)
		for _, mod := range section.Modules {
			fmt.Fprintf(w, "  - %s", mod.Name)
			if mod.ModName != "" {
				fmt.Fprintf(w, " [%s]", mod.ModName)
			}
			fmt.Fprintln(w)
			for _, f := range mod.Contents {
				if f.Type != "file" {
					continue
				}
				fmt.Fprintf(w, "      %s (%s, %s)\n", f.Filename, courses.FileTypeOf(f.Filename), courses.FormatFileSize(f.Filesize))
			}
		}
	}
}

func writeFiles(w io.Writer, info *models.DownloadInfo) error {
	if info.FilesCount == 0 || len(info.Files) == 0 {
		msg := info.Message
		if msg == "" {
			msg = "No files found"
		}
		fmt.Fprintln(w, msg)
		return nil
	}

	fmt.Fprintf(w, "%d files\n\n", info.FilesCount)
	tw := newTable(w)
	fmt.Fprintln(tw, "FILE\tTYPE\tSIZE\tSECTION\tMODULE")
	for _, f := range info.Files {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			f.Filename, courses.FileTypeOf(f.Filename), courses.FormatFileSize(f.Filesize), f.SectionName, f.ModuleName)
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatTime(t time.Time) string {
	return t.Local().Format("Jan 2, 2006 15:04")
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// plainText strips the HTML Moodle puts in summaries.
func plainText(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(tagPattern.ReplaceAllString(s, " "))), " ")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
