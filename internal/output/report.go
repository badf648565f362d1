package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tanq16/xferbench/internal/harness"
	"github.com/tanq16/xferbench/internal/utils"
	"gopkg.in/yaml.v3"
)

// IterationLine is the one-line summary printed as each iteration finishes.
func IterationLine(it harness.IterationResult, total int) string {
	var b strings.Builder
	if it.Succeeded() {
		b.WriteString(FSuccess(StyleSymbols["pass"]))
	} else {
		b.WriteString(FError(StyleSymbols["fail"]))
	}
	fmt.Fprintf(&b, " %s", FHeader(fmt.Sprintf("iteration %d/%d", it.Index+1, total)))
	if it.Upload != nil && it.Upload.Success {
		fmt.Fprintf(&b, " %s %s", FDebug(StyleSymbols["dot"]),
			FInfo(fmt.Sprintf("upload %s in %s", utils.FormatBytes(uint64(it.Upload.Bytes)), formatDuration(it.Upload.Elapsed))))
	}
	if it.Download != nil && it.Download.Success {
		mode := "download"
		if it.Download.Chunked {
			mode = fmt.Sprintf("chunked download (%d chunks)", it.Download.Chunks)
		}
		fmt.Fprintf(&b, " %s %s", FDebug(StyleSymbols["dot"]),
			FInfo(fmt.Sprintf("%s %s in %s", mode, utils.FormatBytes(uint64(it.Download.Bytes)), formatDuration(it.Download.Elapsed))))
	}
	switch it.Verification {
	case harness.VerifyMatch:
		fmt.Fprintf(&b, " %s %s", FDebug(StyleSymbols["dot"]), FSuccess2("digest match"))
	case harness.VerifySkipped:
		fmt.Fprintf(&b, " %s %s", FDebug(StyleSymbols["dot"]), FWarning("no reference digest"))
	}
	if !it.Succeeded() {
		fmt.Fprintf(&b, " %s %s", FDebug(StyleSymbols["arrow"]), FError(fmt.Sprintf("%s failed: %s", it.FailedPhase, it.Error)))
	}
	return b.String()
}

func PrintIteration(it harness.IterationResult, total int) {
	fmt.Println(IterationLine(it, total))
}

func statusCell(it harness.IterationResult) string {
	if it.Succeeded() {
		return "ok"
	}
	return fmt.Sprintf("%s (%s)", it.FailedPhase, it.Cause)
}

func transferCell(r *utils.TransferResult) string {
	if r == nil {
		return "-"
	}
	if !r.Success {
		return "failed"
	}
	return fmt.Sprintf("%s %s", formatDuration(r.Elapsed), formatThroughput(r.Bytes, r.Elapsed))
}

// ReportTable lays out one row per iteration.
func ReportTable(r *harness.IterationReport, width int) *Table {
	t := NewTable([]string{"#", "Status", "Upload", "Download", "Bytes", "SHA256", "Verify"})
	for _, it := range r.Iterations {
		var bytes int64
		sum := "-"
		if it.Upload != nil {
			bytes += it.Upload.Bytes
		}
		if it.Download != nil {
			bytes += it.Download.Bytes
			if it.Download.Digest != "" {
				sum = shortDigest(it.Download.Digest, width)
			}
		}
		t.AddRow(
			strconv.Itoa(it.Index+1),
			statusCell(it),
			transferCell(it.Upload),
			transferCell(it.Download),
			utils.FormatBytes(uint64(bytes)),
			sum,
			string(it.Verification),
		)
	}
	return t
}

// RenderReport writes the full report: table, aggregate counts and errors.
// Counts are always written, even when every iteration failed.
func RenderReport(w io.Writer, r *harness.IterationReport, width int) {
	title := "Run " + r.RunID
	if r.Name != "" {
		title = fmt.Sprintf("Run %s (%s)", r.Name, r.RunID)
	}
	fmt.Fprintln(w, FHeader(title))
	if r.Generated != nil {
		verb := "generated"
		if r.Generated.Reused {
			verb = "reused"
		}
		fmt.Fprintf(w, "  %s %s\n", FDebug(fmt.Sprintf("%s %s (%s)", verb, r.Generated.Path, utils.FormatBytes(uint64(r.Generated.Size)))),
			FDetail("SHA256: "+r.Generated.Digest))
	}
	if len(r.Iterations) > 0 {
		fmt.Fprintln(w, ReportTable(r, width).FormatTable(false))
	}

	fmt.Fprintf(w, "  %s\n", FSuccess2(fmt.Sprintf("Succeeded %d of %d", r.Succeeded, r.Attempted)))
	if r.Failed > 0 {
		fmt.Fprintf(w, "  %s\n", FError(fmt.Sprintf("Failed %d of %d (transfer %d, integrity %d, io %d, other %d)",
			r.Failed, r.Attempted, r.TransferFailures, r.IntegrityFailures, r.IOFailures, r.OtherFailures)))
	}
	if r.AverageUpload > 0 {
		fmt.Fprintf(w, "  %s\n", FInfo("Average upload time: "+formatDuration(r.AverageUpload)))
	}
	if r.AverageDownload > 0 {
		fmt.Fprintf(w, "  %s\n", FInfo("Average download time: "+formatDuration(r.AverageDownload)))
	}
	fmt.Fprintf(w, "  %s\n", FDebug(fmt.Sprintf("Transferred %s in %s",
		utils.FormatBytes(uint64(r.TotalBytes())), formatDuration(r.Duration))))

	if r.Failed > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  "+errorStyle.Bold(true).Render("Errors:"))
		for _, it := range r.Iterations {
			if it.Succeeded() {
				continue
			}
			fmt.Fprintf(w, "    %s %s\n", FError(fmt.Sprintf("%d.", it.Index+1)), FError(fmt.Sprintf("[%s] %s", it.FailedPhase, it.Error)))
		}
	}
	fmt.Fprintln(w)
}

func PrintReport(r *harness.IterationReport) {
	RenderReport(os.Stdout, r, getTerminalWidth())
}

// WriteReport exports reports as a markdown table (.md) or YAML (anything else).
func WriteReport(path string, reports ...*harness.IterationReport) error {
	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		var b strings.Builder
		for _, r := range reports {
			fmt.Fprintf(&b, "## Run %s\n\n", r.RunID)
			b.WriteString(ReportTable(r, 200).FormatTable(true))
			fmt.Fprintf(&b, "\n\nSucceeded %d of %d, failed %d.\n\n", r.Succeeded, r.Attempted, r.Failed)
		}
		data = []byte(b.String())
	default:
		var err error
		if len(reports) == 1 {
			data, err = yaml.Marshal(reports[0])
		} else {
			data, err = yaml.Marshal(map[string]any{"runs": reports})
		}
		if err != nil {
			return fmt.Errorf("error encoding report: %v", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &utils.IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}
