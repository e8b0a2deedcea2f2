package wm

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/damage"
	"github.com/jezek/xgb/randr"
	"github.com/jezek/xgb/xproto"

	"github.com/stratawm/strata/internal/atoms"
	"github.com/stratawm/strata/internal/cursor"
	"github.com/stratawm/strata/internal/deco"
	"github.com/stratawm/strata/internal/ds"
	"github.com/stratawm/strata/internal/ewmh"
	"github.com/stratawm/strata/internal/jar"
	"github.com/stratawm/strata/internal/store"
)

const cookieTimeout = 10 * time.Second

// Options is the read-only policy snapshot the server runs with. Reload
// replaces the whole value between ticks.
type Options struct {
	Theme        deco.Theme
	Desktops     uint32
	DesktopNames []string
	FocusFollows bool
}

func DefaultOptions() Options {
	return Options{
		Theme:    deco.DefaultTheme(),
		Desktops: 4,
	}
}

// completion is a finished protocol round-trip posted by a reply goroutine,
// consumed only at tick boundaries.
type completion struct {
	seq   uint32
	reply any
	err   error
}

// Counters are the manager's running statistics, dumped on request.
type Counters struct {
	Ticks          uint64
	EventsIngested uint64
	RepliesServed  uint64
	Timeouts       uint64
	ProtoErrors    uint64
	Managed        uint64
	Unmanaged      uint64
	Aborted        uint64
	Restacks       uint64
	Flushes        uint64
}

// Server owns every piece of window manager state. All fields are touched
// only by the tick goroutine; the event pump and reply goroutines communicate
// through the events and completions channels.
type Server struct {
	X      *xgb.Conn
	Root   xproto.Window
	Screen xproto.ScreenInfo
	Atoms  *atoms.Table

	opts     Options
	renderer deco.Renderer
	cursors  cursor.Set

	clients  *Clients
	byWindow *ds.Map[store.Handle]
	byFrame  *ds.Map[store.Handle]
	jar      *jar.Jar
	buckets  *Buckets
	scratch  *ds.Arena

	layers [layerCount]ds.SmallVec[store.Handle]

	focusHead store.Handle
	focused   store.Handle
	rootDirty RootDirty

	currentDesktop uint32
	showingDesktop bool
	screenW        uint16
	screenH        uint16

	interaction Interaction

	events      chan pumpItem
	completions chan completion
	control     chan Control

	checkWin       xproto.Window
	restoredActive xproto.Window
	instanceID     uuid.UUID

	stats Counters
	log   *slog.Logger

	running    bool
	restarting bool
	repollFast bool
	damageOK   bool
	lastTime   xproto.Timestamp
}

// New builds a server over an established connection. Nothing is sent yet;
// Setup claims the WM selection and scans existing windows.
func New(conn *xgb.Conn, log *slog.Logger, opts Options) (*Server, error) {
	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	table, err := atoms.Intern(conn)
	if err != nil {
		return nil, fmt.Errorf("intern atoms: %w", err)
	}

	s := &Server{
		X:        conn,
		Root:     screen.Root,
		Screen:   *screen,
		Atoms:    table,
		opts:     opts,
		renderer: deco.NewCoreRenderer(conn, screen.Root),

		clients:  store.New[ClientHot, ClientCold](64),
		byWindow: ds.NewMap[store.Handle](),
		byFrame:  ds.NewMap[store.Handle](),
		jar:      jar.New(cookieTimeout),
		buckets:  NewBuckets(),
		scratch:  ds.NewArena(),

		completions: make(chan completion, 256),
		control:     make(chan Control, 16),

		instanceID: uuid.New(),
		log:        log,

		screenW: screen.WidthInPixels,
		screenH: screen.HeightInPixels,
	}
	return s, nil
}

// Setup becomes the window manager: claims WM_S0, selects substructure
// redirection on the root, publishes the EWMH identity and adopts windows
// that are already mapped.
func (s *Server) Setup() error {
	if err := s.claimSelection(); err != nil {
		return err
	}

	const rootMask = xproto.EventMaskSubstructureRedirect |
		xproto.EventMaskSubstructureNotify |
		xproto.EventMaskStructureNotify |
		xproto.EventMaskPropertyChange |
		xproto.EventMaskButtonPress

	if err := xproto.ChangeWindowAttributesChecked(s.X, s.Root,
		xproto.CwEventMask, []uint32{rootMask}).Check(); err != nil {
		return fmt.Errorf("select on root (another WM running?): %w", err)
	}

	if cur, err := cursor.Create(s.X); err != nil {
		s.log.Warn("Loading cursors failed", "err", err)
	} else {
		s.cursors = cur
		xproto.ChangeWindowAttributes(s.X, s.Root,
			xproto.CwCursor, []uint32{uint32(cur.Normal)})
	}

	s.initExtensions()
	s.publishIdentity()
	s.restoreRootState()
	if err := s.adoptExisting(); err != nil {
		return err
	}
	s.seedRestoredFocus()

	s.rootDirty |= RootDirtyClientList | RootDirtyClientListStacking |
		RootDirtyWorkarea | RootDirtyCurrentDesktop | RootDirtyActiveWindow
	return nil
}

// initExtensions enables the optional extensions the event buckets consume.
// A missing extension just means that bucket stays empty.
func (s *Server) initExtensions() {
	if err := randr.Init(s.X); err != nil {
		s.log.Debug("RandR unavailable", "err", err)
	} else {
		randr.SelectInput(s.X, s.Root, randr.NotifyMaskScreenChange)
	}
	if err := damage.Init(s.X); err != nil {
		s.log.Debug("Damage extension unavailable", "err", err)
	} else {
		s.damageOK = true
	}
}

func (s *Server) claimSelection() error {
	win, err := xproto.NewWindowId(s.X)
	if err != nil {
		return err
	}
	s.checkWin = win

	xproto.CreateWindow(s.X, s.Screen.RootDepth, win, s.Root,
		-1, -1, 1, 1, 0, xproto.WindowClassInputOutput,
		s.Screen.RootVisual, 0, nil)

	xproto.SetSelectionOwner(s.X, win, s.Atoms.WMS0, xproto.TimeCurrentTime)
	owner, err := xproto.GetSelectionOwner(s.X, s.Atoms.WMS0).Reply()
	if err != nil {
		return fmt.Errorf("query WM_S0 owner: %w", err)
	}
	if owner.Owner != win {
		return fmt.Errorf("could not acquire WM_S0, owned by %#x", owner.Owner)
	}
	return nil
}

// publishIdentity wires _NET_SUPPORTING_WM_CHECK so clients and the control
// CLI can find us, and announces the supported atom set.
func (s *Server) publishIdentity() {
	a := s.Atoms
	name := "strata"

	for _, target := range []xproto.Window{s.checkWin, s.Root} {
		xproto.ChangeProperty(s.X, xproto.PropModeReplace, target,
			a.NetSupportingWMCheck, xproto.AtomWindow, 32, 1,
			ewmh.EncodeWindows([]xproto.Window{s.checkWin}))
	}
	xproto.ChangeProperty(s.X, xproto.PropModeReplace, s.checkWin,
		a.NetWMName, a.UTF8String, 8, uint32(len(name)), []byte(name))

	pid := uint32(os.Getpid())
	xproto.ChangeProperty(s.X, xproto.PropModeReplace, s.checkWin,
		a.NetWMPid, xproto.AtomCardinal, 32, 1, ewmh.EncodeCardinals([]uint32{pid}))

	id := s.instanceID.String()
	xproto.ChangeProperty(s.X, xproto.PropModeReplace, s.checkWin,
		xproto.AtomWmCommand, xproto.AtomString, 8, uint32(len(id)), []byte(id))

	supported := a.Supported()
	xproto.ChangeProperty(s.X, xproto.PropModeReplace, s.Root,
		a.NetSupported, xproto.AtomAtom, 32, uint32(len(supported)),
		ewmh.EncodeAtoms(supported))

	s.publishDesktopMeta()
}

// publishDesktopMeta announces the desktop count and names; rerun whenever
// the options snapshot changes them.
func (s *Server) publishDesktopMeta() {
	a := s.Atoms
	xproto.ChangeProperty(s.X, xproto.PropModeReplace, s.Root,
		a.NetNumberOfDesktops, xproto.AtomCardinal, 32, 1,
		ewmh.EncodeCardinals([]uint32{s.opts.Desktops}))
	if names := s.opts.DesktopNames; len(names) > 0 {
		data := ewmh.EncodeTextList(names)
		xproto.ChangeProperty(s.X, xproto.PropModeReplace, s.Root,
			a.NetDesktopNames, a.UTF8String, 8, uint32(len(data)), data)
	}
}

// restoreRootState seeds the current desktop and active window from what a
// previous manager left on the root, so restart is seamless.
func (s *Server) restoreRootState() {
	a := s.Atoms
	if r, err := xproto.GetProperty(s.X, false, s.Root, a.NetCurrentDesktop,
		xproto.AtomCardinal, 0, 1).Reply(); err == nil {
		if v, ok := ewmh.Cardinal(r); ok && v < s.opts.Desktops {
			s.currentDesktop = v
		}
	}
	if r, err := xproto.GetProperty(s.X, false, s.Root, a.NetActiveWindow,
		xproto.AtomWindow, 0, 1).Reply(); err == nil {
		if w, ok := ewmh.Window(r); ok {
			s.restoredActive = w
		}
	}
}

// seedRestoredFocus hands focus back to the window that was active before the
// restart, once adoption has had a chance to manage it again. The claim stays
// pending until that window finishes discovery, so later arrivals cannot
// steal the initial focus from it.
func (s *Server) seedRestoredFocus() {
	if s.restoredActive == 0 {
		return
	}
	if h := s.lookup(s.restoredActive); h != store.Invalid {
		s.SetFocus(h)
	}
}

// adoptExisting manages every viewable non-override-redirect child of the
// root. Attribute fetches are pipelined before the first reply is read.
func (s *Server) adoptExisting() error {
	tree, err := xproto.QueryTree(s.X, s.Root).Reply()
	if err != nil {
		return fmt.Errorf("query tree: %w", err)
	}

	attrCookies := make([]xproto.GetWindowAttributesCookie, len(tree.Children))
	for i, child := range tree.Children {
		attrCookies[i] = xproto.GetWindowAttributes(s.X, child)
	}
	for i, child := range tree.Children {
		attr, err := attrCookies[i].Reply()
		if err != nil || attr == nil {
			continue
		}
		if attr.OverrideRedirect || attr.MapState != xproto.MapStateViewable {
			continue
		}
		s.manageStart(child, true)
	}
	s.log.Info("Adopted existing windows", "total", len(tree.Children), "managed", s.clients.Len())
	return nil
}

// lookup resolves a client or frame window to its handle.
func (s *Server) lookup(win xproto.Window) store.Handle {
	if win == 0 {
		return store.Invalid
	}
	if h, ok := s.byWindow.Get(uint64(win)); ok {
		return h
	}
	if h, ok := s.byFrame.Get(uint64(win)); ok {
		return h
	}
	return store.Invalid
}

// Stats returns a copy of the running counters.
func (s *Server) Stats() Counters { return s.stats }

// SetOptions swaps the policy snapshot between ticks and marks everything
// whose rendering depends on it.
func (s *Server) SetOptions(opts Options) {
	s.opts = opts
	s.clients.ForEach(func(h store.Handle, hot *ClientHot, _ *ClientCold) {
		hot.Dirty |= DirtyGeom | DirtyFrameStyle
	})
	s.rootDirty |= RootDirtyWorkarea
	if s.X != nil {
		s.publishDesktopMeta()
	}
}
