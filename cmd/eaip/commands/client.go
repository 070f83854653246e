package commands

import (
	"eaipviewer/internal/captcha"
	"eaipviewer/internal/components/telemetry"
	"eaipviewer/internal/eaip"
	"eaipviewer/lib/restyutil"

	"github.com/tcnksm/go-input"
)

// newClient builds a portal client from cfg, asking for missing
// credentials on the console.
func newClient(cfg *Config, tel telemetry.API) (*eaip.Client, error) {
	ui := input.DefaultUI()
	err := promptCredentials(ui, &cfg.Account)
	if err != nil {
		return nil, err
	}

	sessionOpts := eaip.SessionOptions{
		BaseUrl:            cfg.BaseUrl,
		Proxy:              cfg.Proxy,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		BrowserTransport:   cfg.BrowserTransport,
		RequestsPerSecond:  cfg.RequestsPerSecond,
	}
	if *dumpHttp != "" {
		output, err := restyutil.NewFilesystemOutput(*dumpHttp)
		if err != nil {
			return nil, err
		}
		sessionOpts.InstrumentOutput = output
	}

	return eaip.NewClient(eaip.Options{
		Session: sessionOpts,
		Credentials: eaip.Credentials{
			Username: cfg.Account.Username,
			Password: cfg.Account.Password,
		},
		Solver: captcha.ConsoleSolver{
			ImagePath: cfg.Output.Captcha,
			UI:        ui,
		},
		Telemetry: tel,
	})
}
