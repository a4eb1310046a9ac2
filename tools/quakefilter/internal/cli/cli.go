package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// OperationType categorizes the work a task is doing.
type OperationType int

const (
	// OpUnknown is the default, un-categorized operation type.
	OpUnknown OperationType = iota
	// OpFilter represents a task filtering and hashing an input file.
	OpFilter
	// OpRate represents a task waiting on model calls.
	OpRate
)

// spinner manages the animation frames for a spinner.
type spinner struct {
	frames []string
	index  int
}

func newSpinner() *spinner {
	return &spinner{
		frames: []string{"⣷", "⣯", "⣟", "⡿", "⢿", "⣻", "⣽", "⣾"},
	}
}

func (s *spinner) next() string {
	frame := s.frames[s.index]
	s.index = (s.index + 1) % len(s.frames)
	return frame
}

func (s *spinner) current() string {
	return s.frames[s.index]
}

// managedTask holds the state for a single line in the console.
type managedTask struct {
	id           string
	msg          string
	opType       OperationType
	lastActivity time.Time
	spinner      *spinner
}

// Console manages styled and dynamic CLI output.
type Console struct {
	mu          sync.Mutex
	out         io.Writer
	tasks       map[string]*managedTask
	taskOrder   []string // Ensures stable render order
	isRendering bool
	isQuiet     bool
	lastHeight  int
	done        chan struct{}
	// Colors
	Bold   *color.Color
	White  *color.Color
	Lime   *color.Color
	Yellow *color.Color
	Cyan   *color.Color
	Gray   *color.Color
	Orange *color.Color
}

// New creates a new Console writing to stderr.
func New(quiet bool) *Console {
	return NewWithWriter(os.Stderr, quiet)
}

// NewWithWriter creates a Console writing to w.
func NewWithWriter(w io.Writer, quiet bool) *Console {
	return &Console{
		out:       w,
		isQuiet:   quiet,
		tasks:     make(map[string]*managedTask),
		taskOrder: make([]string, 0),
		Bold:      color.New(color.Bold),
		White:     color.New(color.FgWhite),
		Lime:      color.New(color.FgHiGreen),
		Yellow:    color.New(color.FgHiYellow),
		Cyan:      color.New(color.FgCyan),
		Gray:      color.New(color.FgHiBlack),
		Orange:    color.New(color.FgYellow),
	}
}

func (c *Console) printStatic(msg string) {
	if c.isQuiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// Clear any existing dynamic lines before printing a static message.
	if c.lastHeight > 0 {
		fmt.Fprintf(c.out, "\033[%dA\033[J", c.lastHeight)
	}
	c.lastHeight = 0
	fmt.Fprintln(c.out, msg)
}

// Info, Success, Warn, Error methods for static messages
func (c *Console) Info(format string, a ...interface{}) { c.printStatic(fmt.Sprintf(format, a...)) }
func (c *Console) Success(format string, a ...interface{}) {
	c.printStatic(c.Lime.Sprintf("✓ %s", fmt.Sprintf(format, a...)))
}
func (c *Console) Warn(format string, a ...interface{}) {
	c.printStatic(c.Yellow.Sprintf("! %s", fmt.Sprintf(format, a...)))
}
func (c *Console) Error(format string, a ...interface{}) {
	c.printStatic(c.Orange.Sprintf("✗ %s", fmt.Sprintf(format, a...)))
}

// AddTask adds a new task to the multi-line display.
func (c *Console) AddTask(taskID, message string, opType OperationType) {
	if c.isQuiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tasks[taskID]; !exists {
		c.tasks[taskID] = &managedTask{
			id:      taskID,
			msg:     message,
			opType:  opType,
			spinner: newSpinner(),
		}
		c.taskOrder = append(c.taskOrder, taskID)
	}

	if !c.isRendering {
		c.isRendering = true
		c.done = make(chan struct{})
		go c.render(c.done)
	}
}

// UpdateTask replaces a task's message and marks it active.
func (c *Console) UpdateTask(taskID, message string) {
	if c.isQuiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if task, ok := c.tasks[taskID]; ok {
		task.msg = message
		task.lastActivity = time.Now()
	}
}

// Progress returns a callback that reports current/total progress on a task.
func (c *Console) Progress(taskID string) func(current, total int, message string) {
	return func(current, total int, message string) {
		c.UpdateTask(taskID, fmt.Sprintf("%d/%d %s", current, total, message))
	}
}

// RemoveTask removes a task from the display.
func (c *Console) RemoveTask(taskID string) {
	if c.isQuiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tasks, taskID)
	for i, id := range c.taskOrder {
		if id == taskID {
			c.taskOrder = append(c.taskOrder[:i], c.taskOrder[i+1:]...)
			break
		}
	}
}

// StopRenderer stops the rendering goroutine and clears its lines.
func (c *Console) StopRenderer() {
	c.mu.Lock()
	if c.isQuiet || !c.isRendering {
		c.mu.Unlock()
		return
	}
	c.isRendering = false
	done := c.done
	c.mu.Unlock()
	<-done
}

func (c *Console) render(done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		var builder strings.Builder

		if c.lastHeight > 0 {
			builder.WriteString(fmt.Sprintf("\033[%dA", c.lastHeight))
		}
		builder.WriteString("\033[J")

		// A stopped renderer clears its lines once and exits.
		if !c.isRendering {
			fmt.Fprint(c.out, builder.String())
			c.lastHeight = 0
			c.mu.Unlock()
			return
		}

		for _, taskID := range c.taskOrder {
			task, ok := c.tasks[taskID]
			if !ok {
				continue
			}
			since := time.Since(task.lastActivity)
			var sp, tx *color.Color
			frame := task.spinner.current()
			switch {
			case task.lastActivity.IsZero() || since > 10*time.Second:
				sp, tx = c.Orange, c.Orange
			case since > 5*time.Second:
				sp, tx = c.Gray, c.Gray
			default:
				frame = task.spinner.next()
				sp, tx = c.Cyan, c.White
				if task.opType == OpRate {
					sp = c.Lime
				}
			}
			builder.WriteString(fmt.Sprintf("%s %s %s\n", sp.Sprint(frame), c.Bold.Sprint(task.id+":"), tx.Sprint(task.msg)))
		}

		fmt.Fprint(c.out, builder.String())
		c.lastHeight = len(c.taskOrder)
		c.mu.Unlock()
	}
}
