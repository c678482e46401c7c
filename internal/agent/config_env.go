package agent

import "os"

// ApplyEnvConfig applies configuration from environment variables
// (PXFLOOD_*). It respects flags that have been explicitly set (changed
// map). Returns an error if any environment variable has an invalid
// format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("api-url", os.Getenv("PXFLOOD_API_URL"), &cfg.APIURL)
	s.setString("state-dir", os.Getenv("PXFLOOD_STATE_DIR"), &cfg.StateDir)

	if err := s.setIntFromString("max-conns", os.Getenv("PXFLOOD_MAX_CONNS"), &cfg.MaxConns); err != nil {
		return err
	}
	if err := s.setIntFromString("send-buf", os.Getenv("PXFLOOD_SEND_BUF_BYTES"), &cfg.SendBuf); err != nil {
		return err
	}

	if err := s.setDuration("interval", os.Getenv("PXFLOOD_REPORT_INTERVAL"), &cfg.ReportInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", os.Getenv("PXFLOOD_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("dial-timeout", os.Getenv("PXFLOOD_DIAL_TIMEOUT"), &cfg.DialTimeout); err != nil {
		return err
	}

	s.setBoolFromString("once", os.Getenv("PXFLOOD_ONCE"), &cfg.Once)

	return nil
}
