// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
)

// ExtraMetricFn is any function that will give extra values to display along the progress bar.
// It is called at each time the progress bar is updated, and it should return a name and the current value when it is called.
type ExtraMetricFn func() (name, value string)

// ProgressbarStyle to use. Defaults to the ASCII version.
// Consider "progressbar.ThemeUnicode" for a prettier version.
// But it requires some of the graphical symbols to be supported.
var ProgressbarStyle = progressbar.ThemeASCII

// maxUpdateFrequency is the time between updates to the commandline display of stats.
const maxUpdateFrequency = time.Millisecond * 200

// ProgressBar displays the progress of processing a known number of items (images, batches),
// along with a table of statistics that is asynchronously refreshed.
//
// Create it with NewProgressBar, call Add as items are processed (it's safe for concurrent use),
// and call Done at the end.
type ProgressBar struct {
	numItems    int
	bar         *progressbar.ProgressBar
	suffix      string
	inNotebook  bool
	start       time.Time
	mu          sync.Mutex
	totalAmount int

	// lipgloss-based rich and asynchronous display for the command-line.
	termenv          *termenv.Output
	statsStyle       lipgloss.Style
	statsTable       *lgtable.Table
	isFirstOutput    bool
	numLinesPrinted  int
	updates          chan int
	asyncUpdatesDone sync.WaitGroup

	extraMetricFns []ExtraMetricFn
}

// IsNotebook returns whether running inside a Jupyter notebook, with a GoNB or a bash_kernel kernel.
// Progress is then printed in a single line, since notebooks don't support moving the cursor.
func IsNotebook() bool {
	for _, env := range []string{"GONB_PIPE", "NOTEBOOK_BASH_KERNEL_CAPABILITIES"} {
		if _, found := os.LookupEnv(env); found {
			return true
		}
	}
	return false
}

// NewProgressBar creates a progress bar for numItems items, described by itemsName (e.g. "images").
//
// Optionally, one can provide extraMetrics: functions that are called at every update of
// the progress bar and should return a name (title) and a value to be included in the
// updated print-out.
func NewProgressBar(numItems int, itemsName string, extraMetrics ...ExtraMetricFn) *ProgressBar {
	pBar := &ProgressBar{
		numItems:       numItems,
		inNotebook:     IsNotebook(),
		extraMetricFns: extraMetrics,
		start:          time.Now(),
	}
	pBar.bar = progressbar.NewOptions(numItems,
		progressbar.OptionSetDescription("      [bold]"),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString(itemsName),
		progressbar.OptionSetTheme(ProgressbarStyle),
		progressbar.OptionSetWriter(pBar), // Required to work with Jupyter notebook.
	)
	if !pBar.inNotebook {
		pBar.isFirstOutput = true
		pBar.termenv = termenv.NewOutput(os.Stdout)
		pBar.statsStyle = lipgloss.NewStyle().PaddingLeft(8)
		pBar.statsTable = newTable()
		pBar.updates = make(chan int, 100) // Large buffer so things are not blocked.
		pBar.asyncUpdatesDone.Add(1)
		go pBar.asyncDisplay()
	}
	return pBar
}

// Write implements io.Writer, and appends the current suffix with metrics to each
// line. It is meant to be used as the default writer for the enclosed progressbar.ProgressBar.
// This ensures that the progress bar and its suffix are written in the same write operation;
// otherwise Jupyter Notebook may display things in different lines.
func (pBar *ProgressBar) Write(data []byte) (n int, err error) {
	n, err = os.Stdout.Write(data)
	if err != nil {
		return n, err
	}
	_, err = os.Stdout.Write([]byte(pBar.suffix))
	if err != nil {
		return 0, err
	}
	return
}

// Add reports that amount more items were processed.
func (pBar *ProgressBar) Add(amount int) {
	if amount <= 0 {
		return
	}
	pBar.mu.Lock()
	defer pBar.mu.Unlock()
	pBar.totalAmount += amount
	if pBar.inNotebook {
		// For notebooks set a suffix that will be written along with the progressbar in [ProgressBar.Write].
		parts := []string{fmt.Sprintf(" [%s of %s]", humanize.Comma(int64(pBar.totalAmount)), humanize.Comma(int64(pBar.numItems)))}
		for _, extraMetric := range pBar.extraMetricFns {
			name, value := extraMetric()
			parts = append(parts, fmt.Sprintf(" [%s=%s]", name, value))
		}
		// Erase to an end-of-line escape sequence ("\033[J") not supported in Jupyter notebooks:
		parts = append(parts, "        ")
		pBar.suffix = strings.Join(parts, "")
		_ = pBar.bar.Add(amount) // Triggers print, see [ProgressBar.Write] method.
		return
	}
	pBar.updates <- amount
}

// asyncDisplay draws the updates. This is handy if the processing is faster than the terminal, in particular
// if running on cloud, with a relatively slow network connection.
func (pBar *ProgressBar) asyncDisplay() {
	defer pBar.asyncUpdatesDone.Done()
	// Suffix to erase spurious characters from previous prints.
	pBar.suffix = "\033[J"
	var processed int
	for amount := range pBar.updates {
		// Exhaust the updates in the buffer:
	exhaust:
		for {
			select {
			case newAmount, ok := <-pBar.updates:
				if !ok {
					break exhaust
				}
				amount += newAmount
			default:
				break exhaust
			}
		}
		processed += amount

		// Create the table to be printed.
		pBar.statsTable.Data(lgtable.NewStringData())
		pBar.statsTable.Row("Processed", fmt.Sprintf("%s of %s",
			humanize.Comma(int64(processed)), humanize.Comma(int64(pBar.numItems))))
		pBar.statsTable.Row("Elapsed", FormatDuration(time.Since(pBar.start)))
		for _, extraMetric := range pBar.extraMetricFns {
			name, value := extraMetric()
			pBar.statsTable.Row(name, value)
		}
		rendered := pBar.statsStyle.Render(pBar.statsTable.String())

		// For command-line, we clear the previous lines that will be overwritten.
		pBar.termenv.HideCursor()
		if !pBar.isFirstOutput {
			pBar.termenv.CursorPrevLine(pBar.numLinesPrinted)
		}
		pBar.isFirstOutput = false

		// Print update: the table, the progress bar line and an empty line.
		fmt.Println(rendered)
		_ = pBar.bar.Add(amount)
		fmt.Println()
		pBar.numLinesPrinted = lipgloss.Height(rendered) + 1
		pBar.termenv.ShowCursor()
		time.Sleep(maxUpdateFrequency)
	}
}

// Done finishes the progress bar display. It must be called once, after all calls to Add.
func (pBar *ProgressBar) Done() {
	if pBar.updates != nil {
		close(pBar.updates)
	}
	pBar.asyncUpdatesDone.Wait()
	if pBar.termenv != nil {
		pBar.termenv.ShowCursor()
	}
	fmt.Println()
}
