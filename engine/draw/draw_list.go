package draw

import (
	"slices"
	"sync"
)

// DrawList is the ordered command stream recorded for one camera.
type DrawList struct {
	Camera   string
	Commands []RenderCommand
}

// Push appends commands to the list.
func (l *DrawList) Push(cmds ...RenderCommand) {
	l.Commands = append(l.Commands, cmds...)
}

// Len returns the number of recorded commands.
func (l *DrawList) Len() int {
	return len(l.Commands)
}

// Reset drops the recorded commands, keeping the allocated capacity.
func (l *DrawList) Reset() {
	l.Commands = l.Commands[:0]
}

// draws is the implementation of the Draws interface.
type draws struct {
	mu    sync.Mutex
	lists []*DrawList
}

// Draws holds the draw lists of the current frame, one per camera, in the order cameras were
// first recorded.
type Draws interface {
	// Get returns the draw list of a camera, creating it if needed.
	//
	// Parameters:
	//   - camera: the camera slot name
	//
	// Returns:
	//   - *DrawList: the camera's draw list
	Get(camera string) *DrawList

	// Lists returns the non-empty draw lists.
	//
	// Returns:
	//   - []*DrawList: the draw lists in recording order
	Lists() []*DrawList

	// Reset empties every draw list. Called once per frame after submission.
	Reset()
}

var _ Draws = &draws{}

// NewDraws creates an empty per-frame draw list container.
//
// Returns:
//   - Draws: the container
func NewDraws() Draws {
	return &draws{}
}

func (d *draws) Get(camera string) *DrawList {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range d.lists {
		if l.Camera == camera {
			return l
		}
	}
	l := &DrawList{Camera: camera}
	d.lists = append(d.lists, l)
	return l
}

func (d *draws) Lists() []*DrawList {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.DeleteFunc(slices.Clone(d.lists), func(l *DrawList) bool { return l.Len() == 0 })
}

func (d *draws) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range d.lists {
		l.Reset()
	}
}
