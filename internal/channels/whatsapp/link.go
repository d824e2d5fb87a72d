package whatsapp

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/roelfdiedericks/wabot/internal/paths"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

// syncTimeout bounds the wait for the first full sync after a scan.
const syncTimeout = 30 * time.Second

// LinkDevice pairs a new device by QR code, printing the code to out.
// Stale devices from earlier attempts are removed first.
func LinkDevice(ctx context.Context, dataDir string, out io.Writer) error {
	db, container, err := openStore(ctx, dataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	old, err := container.GetAllDevices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list existing devices: %w", err)
	}
	for _, d := range old {
		if d.ID != nil {
			fmt.Fprintf(out, "Removing stale device: %s\n", d.ID)
		}
		if err := d.Delete(ctx); err != nil {
			L_warn("whatsapp: failed to remove stale device", "error", err)
		}
	}

	client := whatsmeow.NewClient(container.NewDevice(), newLogger("client"))

	// the QR "success" only means the scan was accepted; pairing is complete
	// once the client has connected and synced
	connected := make(chan struct{}, 1)
	client.AddEventHandler(func(evt interface{}) {
		if _, ok := evt.(*events.Connected); ok {
			select {
			case connected <- struct{}{}:
			default:
			}
		}
	})

	qrChan, err := client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to get QR channel: %w", err)
	}
	if err := client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer client.Disconnect()

	fmt.Fprintln(out, "Scan the QR code below with WhatsApp on the bot's phone:")
	fmt.Fprintln(out, "  WhatsApp > Settings > Linked Devices > Link a Device")
	fmt.Fprintln(out)

	for item := range qrChan {
		switch item.Event {
		case "code":
			qrterminal.GenerateHalfBlock(item.Code, qrterminal.L, out)
			fmt.Fprintln(out, "\nWaiting for scan...")
		case "success":
			fmt.Fprintln(out, "\nScan accepted, completing initial sync...")
			select {
			case <-connected:
			case <-time.After(syncTimeout):
				return fmt.Errorf("timed out waiting for initial sync, try again")
			case <-ctx.Done():
				return ctx.Err()
			}
			fmt.Fprintf(out, "Paired successfully as %s\n", client.Store.ID)
			fmt.Fprintln(out, "Start the bot with 'wabot run'.")
			return nil
		case "timeout":
			return fmt.Errorf("QR code expired, run the command again")
		default:
			return fmt.Errorf("pairing failed: %s", item.Event)
		}
	}
	return fmt.Errorf("QR channel closed unexpectedly")
}

// UnlinkDevice removes every stored device, so the next run needs pairing.
// It returns how many were removed.
func UnlinkDevice(ctx context.Context, dataDir string) (int, error) {
	dbPath := paths.SessionDBPath(dataDir)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return 0, fmt.Errorf("no WhatsApp session found (no %s)", dbPath)
	}
	db, container, err := openStore(ctx, dataDir)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	devices, err := container.GetAllDevices(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list devices: %w", err)
	}
	for _, d := range devices {
		if err := d.Delete(ctx); err != nil {
			return 0, fmt.Errorf("failed to delete device %s: %w", d.ID, err)
		}
	}
	return len(devices), nil
}

// DeviceInfo describes a paired device.
type DeviceInfo struct {
	JID      string
	PushName string
	Platform string
}

// PairedDevices lists the devices in the session store. A missing store
// means nothing is paired.
func PairedDevices(ctx context.Context, dataDir string) ([]DeviceInfo, error) {
	if _, err := os.Stat(paths.SessionDBPath(dataDir)); os.IsNotExist(err) {
		return nil, nil
	}
	db, container, err := openStore(ctx, dataDir)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	devices, err := container.GetAllDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	out := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		info := DeviceInfo{PushName: d.PushName, Platform: d.Platform}
		if d.ID != nil {
			info.JID = d.ID.String()
		}
		out = append(out, info)
	}
	return out, nil
}
