// orbitalsat is the flight computer's main loop: it wires every internal
// package's host-backed implementation together and runs mission.Machine
// cooperatively, single-threaded. It follows a procArgs -> ParseConfigFile ->
// wire collaborators -> loop shape, collapsing what could be a producer/
// consumer process split into one loop since there is only one radio link
// here, not a socket handoff between processes.
package main

import (
	"encoding/hex"
	"log"
	"os"
	"time"

	arg "github.com/alexflint/go-arg"
	"periph.io/x/periph/host"

	"github.com/edsonpavoni/orbitalTemple/internal/accel"
	"github.com/edsonpavoni/orbitalTemple/internal/antenna"
	"github.com/edsonpavoni/orbitalTemple/internal/beacon"
	"github.com/edsonpavoni/orbitalTemple/internal/clock"
	"github.com/edsonpavoni/orbitalTemple/internal/codec"
	"github.com/edsonpavoni/orbitalTemple/internal/console"
	"github.com/edsonpavoni/orbitalTemple/internal/fsext"
	"github.com/edsonpavoni/orbitalTemple/internal/imageupload"
	"github.com/edsonpavoni/orbitalTemple/internal/mission"
	"github.com/edsonpavoni/orbitalTemple/internal/nvstore"
	"github.com/edsonpavoni/orbitalTemple/internal/phy"
	"github.com/edsonpavoni/orbitalTemple/internal/radiation"
	"github.com/edsonpavoni/orbitalTemple/internal/radio"
	"github.com/edsonpavoni/orbitalTemple/internal/sensors"
	"github.com/edsonpavoni/orbitalTemple/internal/soak"
	"github.com/edsonpavoni/orbitalTemple/internal/telemetry"
	"github.com/edsonpavoni/orbitalTemple/internal/watchdog"
)

const (
	loopDelay       = 100 * time.Millisecond
	responseLineGap = 75 * time.Millisecond
)

var version = "<not set>"

type Args struct {
	ConfigFile string `arg:"-c,--config" help:"path to configuration file"`
	Timestamps bool   `arg:"-t,--timestamps" help:"include timestamps in log output"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	var args Args
	args.ConfigFile = "/etc/orbitalsat.yaml"
	arg.MustParse(&args)
	return args
}

func main() {
	if err := runMain(); err != nil {
		log.Fatal(err)
	}
}

func runMain() error {
	args := procArgs()
	if !args.Timestamps {
		log.SetFlags(0)
	}

	log.Printf("running version: %s", version)
	conf, err := ParseConfigFile(args.ConfigFile)
	if err != nil {
		return err
	}
	logConfig(conf)

	key, err := hex.DecodeString(conf.HMACKeyHex)
	if err != nil {
		return err
	}

	var con console.Console
	if conf.ConsolePort != "" {
		s, err := console.OpenSerial(conf.ConsolePort, conf.ConsoleBaud)
		if err != nil {
			log.Printf("console: falling back to stdout: %v", err)
			con = console.NewBuffered(os.Stdout)
		} else {
			con = s
		}
	} else {
		con = console.NewBuffered(os.Stdout)
	}

	clk := clock.NewReal()

	log.Println("host initialisation")
	if _, err := host.Init(); err != nil {
		return err
	}

	burnWire, err := antenna.NewPeriphOutputPin(conf.BurnWirePin)
	if err != nil {
		return err
	}
	switchPin, err := antenna.NewPeriphInputPin(conf.SwitchPin)
	if err != nil {
		return err
	}

	wdPrim := watchdog.SystemdPrimitive{}
	wdGate := watchdog.NewGate(wdPrim, clk)
	if err := wdGate.Init(); err != nil {
		return err
	}

	store := nvstore.NewFile(conf.StateFile)
	fs := fsext.NewOSFS(conf.StorageRoot, conf.StorageQuota)

	driver := phy.NewLoopback()
	link := radio.NewLink(driver, clk)
	link.Init()

	rad := radiation.NewStore()
	ant := antenna.NewDeployer(burnWire, switchPin, wdGate)

	imu := sensors.NewStubIMU(sensors.Vec3{})
	bat := sensors.StubBattery{V: 7.4}
	therm := sensors.StubThermistor{C: 20}
	lux := sensors.StubLuminance{L: 0}

	bootNowMS := clk.NowMS()
	bcn := beacon.NewScheduler(bat, bootNowMS)
	img := imageupload.NewUploader(fs, bat)
	acc := accel.NewRecorder(fs, imu, bat, wdGate)
	tele := telemetry.NewComposer(fs, imu, bat, therm, lux, link, rad)
	sk := soak.NewLogger(con, fs)

	m := mission.NewMachine(mission.Deps{
		Rad: rad, Store: store, Antenna: ant, Link: link, Beacon: bcn,
		Img: img, Accel: acc, Tele: tele, Soak: sk, FS: fs, WD: wdGate, Clk: clk,
		BootNowMS: bootNowMS,
	})

	auth := codec.NewAuthenticator(key)
	cdc := codec.NewCodec(conf.SatID, auth)

	loop(m, link, cdc, clk, wdGate)
	return nil
}

// loop is the cooperative scheduler: drain the radio, authenticate and
// dispatch any waiting frame, tick the mission state machine, feed the
// watchdog, then delay. It polls one input source per iteration without
// blocking and processes whatever arrived before looping.
func loop(m *mission.Machine, link *radio.Link, cdc *codec.Codec, clk *clock.Real, wd *watchdog.Gate) {
	for {
		nowMS := clk.NowMS()

		if raw, ok := link.PollRX(); ok {
			frame, reject := cdc.ParseAndVerify(raw)
			if reject == nil {
				for _, line := range m.HandleFrame(frame, nowMS) {
					link.Send(line)
					clk.Sleep(responseLineGap)
				}
			} else if reject.Response != "" {
				link.Send(reject.Response)
			}
		}

		for _, line := range m.Tick(nowMS) {
			if line == "" {
				continue
			}
			link.Send(line)
			clk.Sleep(responseLineGap)
		}

		if m.RestartRequested() {
			log.Println("restart requested, exiting")
			return
		}

		if wd.ShouldFeed() {
			wd.Feed()
		}
		clk.Sleep(loopDelay)
	}
}

func logConfig(conf *Config) {
	log.Printf("sat id: %s", conf.SatID)
	log.Printf("state file: %s", conf.StateFile)
	log.Printf("storage root: %s (quota %d bytes)", conf.StorageRoot, conf.StorageQuota)
	log.Printf("console port: %q baud %d", conf.ConsolePort, conf.ConsoleBaud)
	log.Printf("antenna pins: burn-wire=%s switch=%s", conf.BurnWirePin, conf.SwitchPin)
}
