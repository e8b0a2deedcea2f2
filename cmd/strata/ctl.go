package main

import (
	"errors"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/spf13/cobra"

	"github.com/stratawm/strata/internal/atoms"
	"github.com/stratawm/strata/internal/wm"
)

// ctlCommand talks to the running manager over the display: each subcommand
// sends one control client message at the root window.
func ctlCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ctl",
		Short: "Control a running window manager",
	}

	for _, sub := range []struct {
		use   string
		short string
		code  uint32
	}{
		{"quit", "Stop the running window manager", wm.CtlQuit},
		{"restart", "Restart the running window manager in place", wm.CtlRestart},
		{"arrange", "Tile the current desktop's windows into a grid", wm.CtlArrange},
	} {
		code := sub.code
		cmd.AddCommand(&cobra.Command{
			Use:   sub.use,
			Short: sub.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return sendControl(code)
			},
		})
	}

	return cmd
}

func sendControl(code uint32) error {
	conn, err := xgb.NewConn()
	if err != nil {
		return err
	}
	defer conn.Close()

	table, err := atoms.Intern(conn)
	if err != nil {
		return err
	}
	root := xproto.Setup(conn).DefaultScreen(conn).Root

	// A manager advertises itself through _NET_SUPPORTING_WM_CHECK.
	check, err := xproto.GetProperty(conn, false, root, table.NetSupportingWMCheck,
		xproto.AtomWindow, 0, 1).Reply()
	if err != nil || check == nil || len(check.Value) < 4 {
		return errors.New("no running window manager found")
	}

	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: root,
		Type:   table.StrataControl,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{code, 0, 0, 0, 0}),
	}
	return xproto.SendEventChecked(conn, false, root,
		xproto.EventMaskSubstructureRedirect, string(ev.Bytes())).Check()
}
