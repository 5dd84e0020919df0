package main

import (
	"io/ioutil"

	yaml "gopkg.in/yaml.v2"
)

// Config is the mission configuration loaded from /etc/orbitalsat.yaml (or
// the path given by -c): a struct of yaml-tagged fields overlaid onto
// hand-written defaults, never onto a zero value.
type Config struct {
	SatID        string `yaml:"sat-id"`
	HMACKeyHex   string `yaml:"hmac-key-hex"`
	StateFile    string `yaml:"state-file"`
	StorageRoot  string `yaml:"storage-root"`
	StorageQuota uint64 `yaml:"storage-quota-bytes"`
	ConsolePort  string `yaml:"console-port"`
	ConsoleBaud  int    `yaml:"console-baud"`
	BurnWirePin  string `yaml:"burn-wire-pin"`
	SwitchPin    string `yaml:"switch-pin"`
}

var defaultConfig = Config{
	SatID:        "SAT1",
	HMACKeyHex:   "",
	StateFile:    "/var/lib/orbitalsat/checkpoint.bin",
	StorageRoot:  "/var/lib/orbitalsat/storage",
	StorageQuota: 0,
	ConsolePort:  "",
	ConsoleBaud:  115200,
	BurnWirePin:  "GPIO17",
	SwitchPin:    "GPIO27",
}

func ParseConfigFile(path string) (*Config, error) {
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(buf)
}

func ParseConfig(buf []byte) (*Config, error) {
	conf := defaultConfig
	if err := yaml.Unmarshal(buf, &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}
