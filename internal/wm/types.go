// Package wm is the window manager core: the single tick goroutine that owns
// the client store, the cookie jar, the stacking layers and the dirty-flag
// flush engine. Nothing in this package blocks on a protocol reply; requests
// go out, answers come back through the jar at tick boundaries.
package wm

import (
	"github.com/jezek/xgb/damage"
	"github.com/jezek/xgb/xproto"

	"github.com/stratawm/strata/internal/ewmh"
	"github.com/stratawm/strata/internal/store"
)

// LifeState is the lifecycle of a managed window. New windows stay New until
// every discovery fetch has answered; Unmanaging makes teardown idempotent.
type LifeState uint8

const (
	StateUnmanaged LifeState = iota
	StateNew
	StateReady
	StateMapped
	StateUnmapped
	StateUnmanaging
	StateDestroyed
)

func (s LifeState) String() string {
	switch s {
	case StateUnmanaged:
		return "unmanaged"
	case StateNew:
		return "new"
	case StateReady:
		return "ready"
	case StateMapped:
		return "mapped"
	case StateUnmapped:
		return "unmapped"
	case StateUnmanaging:
		return "unmanaging"
	case StateDestroyed:
		return "destroyed"
	}
	return "invalid"
}

// Layer is one band of the global z-order. Within a layer, windows are
// ordered bottom to top.
type Layer uint8

const (
	LayerDesktop Layer = iota
	LayerBelow
	LayerNormal
	LayerAbove
	LayerDock
	LayerOverlay
	LayerFullscreen
	layerCount
)

func (l Layer) String() string {
	switch l {
	case LayerDesktop:
		return "desktop"
	case LayerBelow:
		return "below"
	case LayerNormal:
		return "normal"
	case LayerAbove:
		return "above"
	case LayerDock:
		return "dock"
	case LayerOverlay:
		return "overlay"
	case LayerFullscreen:
		return "fullscreen"
	}
	return "invalid"
}

// Dirty marks per-window state changed in memory but not yet pushed to the
// server. Bits are cleared only by the flush engine.
type Dirty uint16

const (
	DirtyGeom Dirty = 1 << iota
	DirtyStack
	DirtyTitle
	DirtyHints
	DirtyState
	DirtyFrameStyle
	DirtyStrut
	DirtyOpacity
	DirtyDesktop
	DirtyFrame
)

// RootDirty marks server-wide state republished after the per-window flush
// pass.
type RootDirty uint16

const (
	RootDirtyClientList RootDirty = 1 << iota
	RootDirtyClientListStacking
	RootDirtyActiveWindow
	RootDirtyWorkarea
	RootDirtyCurrentDesktop
	RootDirtyVisibility
)

// StateFlags are the EWMH window states tracked per client.
type StateFlags uint16

const (
	FlagFullscreen StateFlags = 1 << iota
	FlagAbove
	FlagBelow
	FlagSticky
	FlagHidden
	FlagMaxHorz
	FlagMaxVert
	FlagModal
	FlagShaded
	FlagSkipTaskbar
	FlagSkipPager
	FlagDemandsAttention
)

// Geometry is a client content rectangle in root coordinates.
type Geometry struct {
	X, Y int16
	W, H uint16
}

// ClientHot is the per-window record touched by the per-tick whole-store
// scan. Cross-client references are handles; the focus MRU and the transient
// parent/child tree are index-based doubly linked lists living here.
type ClientHot struct {
	Window xproto.Window
	Frame  xproto.Window
	Damage damage.Damage

	State LifeState
	Dirty Dirty
	Flags StateFlags

	Layer      Layer
	LayerIndex int

	Geom      Geometry
	FrameGeom Geometry
	Border    uint16

	PendingReplies   int
	OverrideRedirect bool
	MappedOnServer   bool
	IgnoreUnmaps     int

	Desktop uint32

	// Focus MRU list links, most recent first.
	FocusPrev, FocusNext store.Handle

	// Transient tree: parent plus an intrusive child list.
	Parent      store.Handle
	FirstChild  store.Handle
	PrevSibling store.Handle
	NextSibling store.Handle

	InputHint   bool
	TakesFocus  bool
	DeletesSelf bool
	AnswersPing bool
	Urgent      bool
	Decorated   bool
	HasOpacity  bool
	Opacity     uint32
	StartIconic bool
}

// ClientCold holds strings and decoded protocol lists; same handle and
// lifetime as the hot record, out of the scan's way.
type ClientCold struct {
	Title     string
	IconTitle string
	Instance  string
	Class     string
	Machine   string

	TransientForWin xproto.Window
	Protocols       []xproto.Atom
	WindowTypes     []xproto.Atom

	Strut    ewmh.Strut
	HasStrut bool

	SizeHints ewmh.SizeHints
	Hints     ewmh.WMHints

	Pid            uint32
	UserTime       uint32
	UserTimeWindow xproto.Window
	SyncCounter    uint32

	// _NET_WM_STATE messages that raced the discovery burst, replayed when
	// management finishes.
	QueuedState []StateMessage
}

// StateMessage is a parsed _NET_WM_STATE client message.
type StateMessage struct {
	Action uint32
	First  xproto.Atom
	Second xproto.Atom
}

const (
	StateRemove = 0
	StateAdd    = 1
	StateToggle = 2

	maxQueuedState = 8
)

// Clients is the handle store for window records.
type Clients = store.Store[ClientHot, ClientCold]
