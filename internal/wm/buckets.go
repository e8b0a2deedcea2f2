package wm

import (
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/damage"
	"github.com/jezek/xgb/randr"
	"github.com/jezek/xgb/xproto"

	"github.com/stratawm/strata/internal/ds"
)

// maxEventsPerTick bounds the ingest phase. When the queue is not exhausted,
// the next tick skips the blocking wait and re-polls immediately.
const maxEventsPerTick = 512

// LifecycleKind orders the non-coalescable window lifecycle events.
type LifecycleKind uint8

const (
	LifeCreate LifecycleKind = iota
	LifeMapRequest
	LifeMapNotify
	LifeUnmapNotify
	LifeDestroyNotify
	LifeReparentNotify
)

// LifecycleEvent is one entry of the ordered lifecycle list.
type LifecycleEvent struct {
	Kind      LifecycleKind
	Window    xproto.Window
	Parent    xproto.Window
	Synthetic bool
}

// InputEvent is a key or button event, ordered, never coalesced.
type InputEvent struct {
	Key    bool
	Press  bool
	Detail byte
	Mods   uint16
	Window xproto.Window
	Child  xproto.Window
	RootX  int16
	RootY  int16
	EventX int16
	EventY int16
	Time   xproto.Timestamp
}

// RectEntry is a coalesced expose or damage bucket entry: the union rectangle
// of every event seen for one window this tick.
type RectEntry struct {
	Window         xproto.Window
	X1, Y1, X2, Y2 int32
	Count          int
}

func (r *RectEntry) union(x, y int32, w, h int32) {
	if r.Count == 0 {
		r.X1, r.Y1, r.X2, r.Y2 = x, y, x+w, y+h
		r.Count = 1
		return
	}
	if x < r.X1 {
		r.X1 = x
	}
	if y < r.Y1 {
		r.Y1 = y
	}
	if x+w > r.X2 {
		r.X2 = x + w
	}
	if y+h > r.Y2 {
		r.Y2 = y + h
	}
	r.Count++
}

// MotionEntry keeps only the latest pointer position per window.
type MotionEntry struct {
	Window xproto.Window
	RootX  int16
	RootY  int16
	EventX int16
	EventY int16
	Mods   uint16
	Time   xproto.Timestamp
}

// ConfigureEntry accumulates configure-requests for one window. Later
// requests overwrite the fields they touch and the mask accumulates the
// union, so the final entry reflects the last value seen per field.
type ConfigureEntry struct {
	Window    xproto.Window
	Mask      uint16
	X, Y      int16
	W, H      uint16
	Border    uint16
	Sibling   xproto.Window
	StackMode byte
}

func (c *ConfigureEntry) overlay(e *xproto.ConfigureRequestEvent) {
	m := e.ValueMask
	if m&xproto.ConfigWindowX != 0 {
		c.X = e.X
	}
	if m&xproto.ConfigWindowY != 0 {
		c.Y = e.Y
	}
	if m&xproto.ConfigWindowWidth != 0 {
		c.W = e.Width
	}
	if m&xproto.ConfigWindowHeight != 0 {
		c.H = e.Height
	}
	if m&xproto.ConfigWindowBorderWidth != 0 {
		c.Border = e.BorderWidth
	}
	if m&xproto.ConfigWindowSibling != 0 {
		c.Sibling = e.Sibling
	}
	if m&xproto.ConfigWindowStackMode != 0 {
		c.StackMode = e.StackMode
	}
	c.Mask |= m
}

// PropertyEntry is one deduplicated property change.
type PropertyEntry struct {
	Window  xproto.Window
	Atom    xproto.Atom
	Deleted bool
}

// ConfigureNotifyEntry records server-side geometry changes, ordered.
type ConfigureNotifyEntry struct {
	Window xproto.Window
	X, Y   int16
	W, H   uint16
	Above  xproto.Window
}

// Buckets is the per-tick event staging area. Coalescable kinds key into
// their bucket through an index map; ordered kinds append. All storage is
// reused across ticks.
type Buckets struct {
	lifecycle ds.SmallVec[LifecycleEvent]
	input     ds.SmallVec[InputEvent]
	messages  []xproto.ClientMessageEvent
	confNote  []ConfigureNotifyEntry

	exposeIdx *ds.Map[int]
	expose    []RectEntry

	damageIdx *ds.Map[int]
	damages   []RectEntry

	motionIdx *ds.Map[int]
	motion    []MotionEntry

	configIdx *ds.Map[int]
	configs   []ConfigureEntry

	propSeen *ds.Map[int]
	props    []PropertyEntry

	// Windows destroyed this tick; their earlier configure-requests are
	// dropped at ingest so a destroyed window is never reconfigured.
	destroyed *ds.Map[struct{}]

	screenChanged bool
	ingested      int
}

func NewBuckets() *Buckets {
	return &Buckets{
		exposeIdx: ds.NewMap[int](),
		damageIdx: ds.NewMap[int](),
		motionIdx: ds.NewMap[int](),
		configIdx: ds.NewMap[int](),
		propSeen:  ds.NewMap[int](),
		destroyed: ds.NewMap[struct{}](),
	}
}

// Reset clears every bucket for the next tick, keeping capacity.
func (b *Buckets) Reset() {
	b.lifecycle.Clear()
	b.input.Clear()
	b.messages = b.messages[:0]
	b.confNote = b.confNote[:0]
	b.expose = b.expose[:0]
	b.damages = b.damages[:0]
	b.motion = b.motion[:0]
	b.configs = b.configs[:0]
	b.props = b.props[:0]
	b.exposeIdx.Clear()
	b.damageIdx.Clear()
	b.motionIdx.Clear()
	b.configIdx.Clear()
	b.propSeen.Clear()
	b.destroyed.Clear()
	b.screenChanged = false
	b.ingested = 0
}

// Ingested reports how many events this tick has staged.
func (b *Buckets) Ingested() int { return b.ingested }

// Full reports whether the per-tick ingest bound was hit.
func (b *Buckets) Full() bool { return b.ingested >= maxEventsPerTick }

func propKey(win xproto.Window, atom xproto.Atom) uint64 {
	return uint64(win)<<32 | uint64(atom)
}

// Add stages one protocol event into its bucket. Returns false for event
// types the manager does not handle.
func (b *Buckets) Add(ev xgb.Event) bool {
	b.ingested++
	switch e := ev.(type) {
	case xproto.CreateNotifyEvent:
		b.lifecycle.Push(LifecycleEvent{Kind: LifeCreate, Window: e.Window, Parent: e.Parent})
	case xproto.MapRequestEvent:
		b.lifecycle.Push(LifecycleEvent{Kind: LifeMapRequest, Window: e.Window, Parent: e.Parent})
	case xproto.MapNotifyEvent:
		b.lifecycle.Push(LifecycleEvent{Kind: LifeMapNotify, Window: e.Window})
	case xproto.UnmapNotifyEvent:
		b.lifecycle.Push(LifecycleEvent{Kind: LifeUnmapNotify, Window: e.Window, Synthetic: e.FromConfigure})
	case xproto.DestroyNotifyEvent:
		b.lifecycle.Push(LifecycleEvent{Kind: LifeDestroyNotify, Window: e.Window})
		b.destroyed.Put(uint64(e.Window), struct{}{})
		b.dropConfigure(e.Window)
	case xproto.ReparentNotifyEvent:
		b.lifecycle.Push(LifecycleEvent{Kind: LifeReparentNotify, Window: e.Window, Parent: e.Parent})

	case xproto.KeyPressEvent:
		b.input.Push(InputEvent{Key: true, Press: true, Detail: byte(e.Detail), Mods: e.State,
			Window: e.Event, Child: e.Child, RootX: e.RootX, RootY: e.RootY,
			EventX: e.EventX, EventY: e.EventY, Time: e.Time})
	case xproto.KeyReleaseEvent:
		b.input.Push(InputEvent{Key: true, Detail: byte(e.Detail), Mods: e.State,
			Window: e.Event, Child: e.Child, RootX: e.RootX, RootY: e.RootY,
			EventX: e.EventX, EventY: e.EventY, Time: e.Time})
	case xproto.ButtonPressEvent:
		b.input.Push(InputEvent{Press: true, Detail: byte(e.Detail), Mods: e.State,
			Window: e.Event, Child: e.Child, RootX: e.RootX, RootY: e.RootY,
			EventX: e.EventX, EventY: e.EventY, Time: e.Time})
	case xproto.ButtonReleaseEvent:
		b.input.Push(InputEvent{Detail: byte(e.Detail), Mods: e.State,
			Window: e.Event, Child: e.Child, RootX: e.RootX, RootY: e.RootY,
			EventX: e.EventX, EventY: e.EventY, Time: e.Time})

	case xproto.ExposeEvent:
		b.addRect(b.exposeIdx, &b.expose, e.Window,
			int32(e.X), int32(e.Y), int32(e.Width), int32(e.Height))
	case damage.NotifyEvent:
		b.addRect(b.damageIdx, &b.damages, xproto.Window(e.Drawable),
			int32(e.Area.X), int32(e.Area.Y), int32(e.Area.Width), int32(e.Area.Height))

	case xproto.MotionNotifyEvent:
		m := MotionEntry{Window: e.Event, RootX: e.RootX, RootY: e.RootY,
			EventX: e.EventX, EventY: e.EventY, Mods: e.State, Time: e.Time}
		if i, ok := b.motionIdx.Get(uint64(e.Event)); ok {
			b.motion[i] = m
		} else {
			b.motionIdx.Put(uint64(e.Event), len(b.motion))
			b.motion = append(b.motion, m)
		}

	case xproto.ConfigureRequestEvent:
		if b.destroyed.Has(uint64(e.Window)) {
			break
		}
		if i, ok := b.configIdx.Get(uint64(e.Window)); ok {
			b.configs[i].overlay(&e)
		} else {
			c := ConfigureEntry{Window: e.Window}
			c.overlay(&e)
			b.configIdx.Put(uint64(e.Window), len(b.configs))
			b.configs = append(b.configs, c)
		}

	case xproto.ConfigureNotifyEvent:
		b.confNote = append(b.confNote, ConfigureNotifyEntry{
			Window: e.Window, X: e.X, Y: e.Y, W: e.Width, H: e.Height, Above: e.AboveSibling,
		})

	case xproto.PropertyNotifyEvent:
		key := propKey(e.Window, e.Atom)
		if !b.propSeen.Has(key) {
			b.propSeen.Put(key, len(b.props))
			b.props = append(b.props, PropertyEntry{
				Window: e.Window, Atom: e.Atom,
				Deleted: e.State == xproto.PropertyDelete,
			})
		}

	case xproto.ClientMessageEvent:
		b.messages = append(b.messages, e)

	case randr.ScreenChangeNotifyEvent:
		b.screenChanged = true
	case randr.NotifyEvent:
		b.screenChanged = true

	case xproto.MappingNotifyEvent:
		// Keyboard remap; grabs are refreshed during maintenance.
	case xproto.EnterNotifyEvent, xproto.LeaveNotifyEvent,
		xproto.FocusInEvent, xproto.FocusOutEvent,
		xproto.CirculateRequestEvent:
		// Observed but carry no per-tick state.
	default:
		b.ingested--
		return false
	}
	return true
}

func (b *Buckets) addRect(idx *ds.Map[int], list *[]RectEntry, win xproto.Window, x, y, w, h int32) {
	if i, ok := idx.Get(uint64(win)); ok {
		(*list)[i].union(x, y, w, h)
		return
	}
	e := RectEntry{Window: win}
	e.union(x, y, w, h)
	idx.Put(uint64(win), len(*list))
	*list = append(*list, e)
}

// dropConfigure discards a pending configure entry for win. The index map
// keeps other entries' positions valid by swapping with the tail.
func (b *Buckets) dropConfigure(win xproto.Window) {
	i, ok := b.configIdx.Get(uint64(win))
	if !ok {
		return
	}
	last := len(b.configs) - 1
	if i != last {
		b.configs[i] = b.configs[last]
		b.configIdx.Put(uint64(b.configs[i].Window), i)
	}
	b.configs = b.configs[:last]
	b.configIdx.Delete(uint64(win))
}
