// Package atoms interns every atom the window manager speaks in one batched
// round-trip at startup. The table is immutable afterwards.
package atoms

import (
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

type Table struct {
	WMProtocols       xproto.Atom
	WMDeleteWindow    xproto.Atom
	WMTakeFocus       xproto.Atom
	WMState           xproto.Atom
	WMChangeState     xproto.Atom
	WMName            xproto.Atom
	WMIconName        xproto.Atom
	WMClass           xproto.Atom
	WMHints           xproto.Atom
	WMNormalHints     xproto.Atom
	WMClientMachine   xproto.Atom
	WMTransientFor    xproto.Atom
	WMColormapWindows xproto.Atom
	WMS0              xproto.Atom
	UTF8String        xproto.Atom
	MotifWMHints      xproto.Atom
	GTKFrameExtents   xproto.Atom
	StrataControl     xproto.Atom

	NetSupported          xproto.Atom
	NetSupportingWMCheck  xproto.Atom
	NetDesktopNames       xproto.Atom
	NetClientList         xproto.Atom
	NetClientListStacking xproto.Atom
	NetActiveWindow       xproto.Atom
	NetCurrentDesktop     xproto.Atom
	NetNumberOfDesktops   xproto.Atom
	NetWorkarea           xproto.Atom
	NetShowingDesktop     xproto.Atom
	NetCloseWindow        xproto.Atom
	NetFrameExtents       xproto.Atom

	NetWMName               xproto.Atom
	NetWMIconName           xproto.Atom
	NetWMDesktop            xproto.Atom
	NetWMStrut              xproto.Atom
	NetWMStrutPartial       xproto.Atom
	NetWMIcon               xproto.Atom
	NetWMIconGeometry       xproto.Atom
	NetWMPid                xproto.Atom
	NetWMPing               xproto.Atom
	NetWMUserTime           xproto.Atom
	NetWMUserTimeWindow     xproto.Atom
	NetWMSyncRequest        xproto.Atom
	NetWMSyncRequestCounter xproto.Atom
	NetWMWindowOpacity      xproto.Atom
	NetWMAllowedActions     xproto.Atom

	NetWMWindowType             xproto.Atom
	NetWMWindowTypeNormal       xproto.Atom
	NetWMWindowTypeDialog       xproto.Atom
	NetWMWindowTypeDock         xproto.Atom
	NetWMWindowTypeNotification xproto.Atom
	NetWMWindowTypeDesktop      xproto.Atom
	NetWMWindowTypeSplash       xproto.Atom
	NetWMWindowTypeToolbar      xproto.Atom
	NetWMWindowTypeUtility      xproto.Atom
	NetWMWindowTypeMenu         xproto.Atom
	NetWMWindowTypeDropdownMenu xproto.Atom
	NetWMWindowTypePopupMenu    xproto.Atom
	NetWMWindowTypeTooltip      xproto.Atom
	NetWMWindowTypeCombo        xproto.Atom
	NetWMWindowTypeDND          xproto.Atom

	NetWMState                 xproto.Atom
	NetWMStateFullscreen       xproto.Atom
	NetWMStateAbove            xproto.Atom
	NetWMStateBelow            xproto.Atom
	NetWMStateSticky           xproto.Atom
	NetWMStateHidden           xproto.Atom
	NetWMStateMaximizedHorz    xproto.Atom
	NetWMStateMaximizedVert    xproto.Atom
	NetWMStateModal            xproto.Atom
	NetWMStateShaded           xproto.Atom
	NetWMStateSkipTaskbar      xproto.Atom
	NetWMStateSkipPager        xproto.Atom
	NetWMStateDemandsAttention xproto.Atom
	NetWMStateFocused          xproto.Atom

	NetWMActionMove          xproto.Atom
	NetWMActionResize        xproto.Atom
	NetWMActionMinimize      xproto.Atom
	NetWMActionStick         xproto.Atom
	NetWMActionMaximizeHorz  xproto.Atom
	NetWMActionMaximizeVert  xproto.Atom
	NetWMActionFullscreen    xproto.Atom
	NetWMActionChangeDesktop xproto.Atom
	NetWMActionClose         xproto.Atom
	NetWMActionAbove         xproto.Atom
	NetWMActionBelow         xproto.Atom
}

func (t *Table) entries() []struct {
	name string
	dst  *xproto.Atom
} {
	return []struct {
		name string
		dst  *xproto.Atom
	}{
		{"WM_PROTOCOLS", &t.WMProtocols},
		{"WM_DELETE_WINDOW", &t.WMDeleteWindow},
		{"WM_TAKE_FOCUS", &t.WMTakeFocus},
		{"WM_STATE", &t.WMState},
		{"WM_CHANGE_STATE", &t.WMChangeState},
		{"WM_NAME", &t.WMName},
		{"WM_ICON_NAME", &t.WMIconName},
		{"WM_CLASS", &t.WMClass},
		{"WM_HINTS", &t.WMHints},
		{"WM_NORMAL_HINTS", &t.WMNormalHints},
		{"WM_CLIENT_MACHINE", &t.WMClientMachine},
		{"WM_TRANSIENT_FOR", &t.WMTransientFor},
		{"WM_COLORMAP_WINDOWS", &t.WMColormapWindows},
		{"WM_S0", &t.WMS0},
		{"UTF8_STRING", &t.UTF8String},
		{"_MOTIF_WM_HINTS", &t.MotifWMHints},
		{"_GTK_FRAME_EXTENTS", &t.GTKFrameExtents},
		{"_STRATA_CONTROL", &t.StrataControl},

		{"_NET_SUPPORTED", &t.NetSupported},
		{"_NET_SUPPORTING_WM_CHECK", &t.NetSupportingWMCheck},
		{"_NET_DESKTOP_NAMES", &t.NetDesktopNames},
		{"_NET_CLIENT_LIST", &t.NetClientList},
		{"_NET_CLIENT_LIST_STACKING", &t.NetClientListStacking},
		{"_NET_ACTIVE_WINDOW", &t.NetActiveWindow},
		{"_NET_CURRENT_DESKTOP", &t.NetCurrentDesktop},
		{"_NET_NUMBER_OF_DESKTOPS", &t.NetNumberOfDesktops},
		{"_NET_WORKAREA", &t.NetWorkarea},
		{"_NET_SHOWING_DESKTOP", &t.NetShowingDesktop},
		{"_NET_CLOSE_WINDOW", &t.NetCloseWindow},
		{"_NET_FRAME_EXTENTS", &t.NetFrameExtents},

		{"_NET_WM_NAME", &t.NetWMName},
		{"_NET_WM_ICON_NAME", &t.NetWMIconName},
		{"_NET_WM_DESKTOP", &t.NetWMDesktop},
		{"_NET_WM_STRUT", &t.NetWMStrut},
		{"_NET_WM_STRUT_PARTIAL", &t.NetWMStrutPartial},
		{"_NET_WM_ICON", &t.NetWMIcon},
		{"_NET_WM_ICON_GEOMETRY", &t.NetWMIconGeometry},
		{"_NET_WM_PID", &t.NetWMPid},
		{"_NET_WM_PING", &t.NetWMPing},
		{"_NET_WM_USER_TIME", &t.NetWMUserTime},
		{"_NET_WM_USER_TIME_WINDOW", &t.NetWMUserTimeWindow},
		{"_NET_WM_SYNC_REQUEST", &t.NetWMSyncRequest},
		{"_NET_WM_SYNC_REQUEST_COUNTER", &t.NetWMSyncRequestCounter},
		{"_NET_WM_WINDOW_OPACITY", &t.NetWMWindowOpacity},
		{"_NET_WM_ALLOWED_ACTIONS", &t.NetWMAllowedActions},

		{"_NET_WM_WINDOW_TYPE", &t.NetWMWindowType},
		{"_NET_WM_WINDOW_TYPE_NORMAL", &t.NetWMWindowTypeNormal},
		{"_NET_WM_WINDOW_TYPE_DIALOG", &t.NetWMWindowTypeDialog},
		{"_NET_WM_WINDOW_TYPE_DOCK", &t.NetWMWindowTypeDock},
		{"_NET_WM_WINDOW_TYPE_NOTIFICATION", &t.NetWMWindowTypeNotification},
		{"_NET_WM_WINDOW_TYPE_DESKTOP", &t.NetWMWindowTypeDesktop},
		{"_NET_WM_WINDOW_TYPE_SPLASH", &t.NetWMWindowTypeSplash},
		{"_NET_WM_WINDOW_TYPE_TOOLBAR", &t.NetWMWindowTypeToolbar},
		{"_NET_WM_WINDOW_TYPE_UTILITY", &t.NetWMWindowTypeUtility},
		{"_NET_WM_WINDOW_TYPE_MENU", &t.NetWMWindowTypeMenu},
		{"_NET_WM_WINDOW_TYPE_DROPDOWN_MENU", &t.NetWMWindowTypeDropdownMenu},
		{"_NET_WM_WINDOW_TYPE_POPUP_MENU", &t.NetWMWindowTypePopupMenu},
		{"_NET_WM_WINDOW_TYPE_TOOLTIP", &t.NetWMWindowTypeTooltip},
		{"_NET_WM_WINDOW_TYPE_COMBO", &t.NetWMWindowTypeCombo},
		{"_NET_WM_WINDOW_TYPE_DND", &t.NetWMWindowTypeDND},

		{"_NET_WM_STATE", &t.NetWMState},
		{"_NET_WM_STATE_FULLSCREEN", &t.NetWMStateFullscreen},
		{"_NET_WM_STATE_ABOVE", &t.NetWMStateAbove},
		{"_NET_WM_STATE_BELOW", &t.NetWMStateBelow},
		{"_NET_WM_STATE_STICKY", &t.NetWMStateSticky},
		{"_NET_WM_STATE_HIDDEN", &t.NetWMStateHidden},
		{"_NET_WM_STATE_MAXIMIZED_HORZ", &t.NetWMStateMaximizedHorz},
		{"_NET_WM_STATE_MAXIMIZED_VERT", &t.NetWMStateMaximizedVert},
		{"_NET_WM_STATE_MODAL", &t.NetWMStateModal},
		{"_NET_WM_STATE_SHADED", &t.NetWMStateShaded},
		{"_NET_WM_STATE_SKIP_TASKBAR", &t.NetWMStateSkipTaskbar},
		{"_NET_WM_STATE_SKIP_PAGER", &t.NetWMStateSkipPager},
		{"_NET_WM_STATE_DEMANDS_ATTENTION", &t.NetWMStateDemandsAttention},
		{"_NET_WM_STATE_FOCUSED", &t.NetWMStateFocused},

		{"_NET_WM_ACTION_MOVE", &t.NetWMActionMove},
		{"_NET_WM_ACTION_RESIZE", &t.NetWMActionResize},
		{"_NET_WM_ACTION_MINIMIZE", &t.NetWMActionMinimize},
		{"_NET_WM_ACTION_STICK", &t.NetWMActionStick},
		{"_NET_WM_ACTION_MAXIMIZE_HORZ", &t.NetWMActionMaximizeHorz},
		{"_NET_WM_ACTION_MAXIMIZE_VERT", &t.NetWMActionMaximizeVert},
		{"_NET_WM_ACTION_FULLSCREEN", &t.NetWMActionFullscreen},
		{"_NET_WM_ACTION_CHANGE_DESKTOP", &t.NetWMActionChangeDesktop},
		{"_NET_WM_ACTION_CLOSE", &t.NetWMActionClose},
		{"_NET_WM_ACTION_ABOVE", &t.NetWMActionAbove},
		{"_NET_WM_ACTION_BELOW", &t.NetWMActionBelow},
	}
}

// Intern resolves every atom in one pipelined batch: all requests go out
// before the first reply is read.
func Intern(conn *xgb.Conn) (*Table, error) {
	t := &Table{}
	entries := t.entries()

	cookies := make([]xproto.InternAtomCookie, len(entries))
	for i, e := range entries {
		cookies[i] = xproto.InternAtom(conn, false, uint16(len(e.name)), e.name)
	}
	for i, e := range entries {
		reply, err := cookies[i].Reply()
		if err != nil {
			return nil, fmt.Errorf("intern %s: %w", e.name, err)
		}
		*e.dst = reply.Atom
	}
	return t, nil
}

// Static returns a table with distinct fabricated atom values, for offline
// paths that need a populated table without a server round-trip.
func Static() *Table {
	t := &Table{}
	for i, e := range t.entries() {
		*e.dst = xproto.Atom(0x200 + i)
	}
	return t
}

// Supported returns the atom list published as _NET_SUPPORTED.
func (t *Table) Supported() []xproto.Atom {
	return []xproto.Atom{
		t.NetSupported, t.NetSupportingWMCheck,
		t.NetClientList, t.NetClientListStacking, t.NetActiveWindow,
		t.NetCurrentDesktop, t.NetNumberOfDesktops, t.NetDesktopNames,
		t.NetWorkarea,
		t.NetShowingDesktop, t.NetCloseWindow, t.NetFrameExtents,
		t.NetWMName, t.NetWMIconName, t.NetWMDesktop,
		t.NetWMStrut, t.NetWMStrutPartial, t.NetWMPid, t.NetWMPing,
		t.NetWMUserTime, t.NetWMSyncRequest, t.NetWMSyncRequestCounter,
		t.NetWMAllowedActions,
		t.NetWMWindowType, t.NetWMWindowTypeNormal, t.NetWMWindowTypeDialog,
		t.NetWMWindowTypeDock, t.NetWMWindowTypeNotification,
		t.NetWMWindowTypeDesktop, t.NetWMWindowTypeSplash,
		t.NetWMWindowTypeToolbar, t.NetWMWindowTypeUtility,
		t.NetWMState, t.NetWMStateFullscreen, t.NetWMStateAbove,
		t.NetWMStateBelow, t.NetWMStateSticky, t.NetWMStateHidden,
		t.NetWMStateMaximizedHorz, t.NetWMStateMaximizedVert,
		t.NetWMStateSkipTaskbar, t.NetWMStateSkipPager,
		t.NetWMStateDemandsAttention, t.NetWMStateFocused,
	}
}
