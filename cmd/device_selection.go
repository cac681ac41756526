package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/huanfeng/apk-extractor/internal/errors"
	"github.com/huanfeng/apk-extractor/internal/i18n"
	"github.com/huanfeng/apk-extractor/pkg/adb"
)

// promptDevice asks the user to pick one of the online devices by number.
// A single online device is returned without asking.
func promptDevice(devices []adb.Device, in io.Reader, out io.Writer) (*adb.Device, error) {
	var online []adb.Device
	for _, d := range devices {
		if d.Online() {
			online = append(online, d)
		}
	}

	switch len(online) {
	case 0:
		return nil, errors.NewDeviceError(errors.CodeNoDevice, "no online devices available").
			WithSuggestion("Connect a device and enable USB debugging")
	case 1:
		return &online[0], nil
	}

	fmt.Fprintln(out, i18n.T("select.header"))
	for i, d := range online {
		fmt.Fprintf(out, "  %d. %s\n", i+1, d.DisplayName())
	}
	fmt.Fprint(out, i18n.T("select.prompt", map[string]interface{}{"count": len(online)}))

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeNoDevice,
			"no device selected")
	}

	choice, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || choice < 1 || choice > len(online) {
		return nil, errors.NewValidationError(errors.CodeNoDevice,
			fmt.Sprintf("invalid selection %q", strings.TrimSpace(line))).
			WithSuggestion(i18n.T("select.invalid", map[string]interface{}{"count": len(online)}))
	}
	return &online[choice-1], nil
}

// selectSerial resolves the device to use: an explicit serial wins,
// otherwise the user is asked when more than one device is online.
func selectSerial(ctx context.Context, client *adb.Client, in io.Reader, out io.Writer) (string, error) {
	if serial := requestedDevice(); serial != "" {
		return serial, nil
	}
	devices, err := client.Devices(ctx)
	if err != nil {
		return "", err
	}
	d, err := promptDevice(devices, in, out)
	if err != nil {
		return "", err
	}
	return d.Serial, nil
}
