// The cloudsim command runs a local broker that publishes
// simulated accelerometer readings. It can be used to try out
// accellog without a real device.
package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/loggo"
	"github.com/spf13/cobra"
	"gopkg.in/errgo.v1"

	"github.com/rogpeppe/accellog/cloudlinktest"
)

var logger = loggo.GetLogger("accellog.cloudsim")

var rootCmd = &cobra.Command{
	Use:   "cloudsim [flags]",
	Short: "run a broker publishing simulated accelerometer data",
	Example: `  cloudsim --addr localhost:8060 --device-id dev1 --secret s3cret
  cloudsim --names py_x,py_y,py_z --interval 1s`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func main() {
	flags := rootCmd.Flags()
	flags.String("addr", "localhost:8060", "address to listen on")
	flags.String("device-id", "dev1", "device ID that clients must authenticate as")
	flags.String("secret", "s3cret", "secret that clients must authenticate with")
	flags.StringSlice("names", []string{"x", "y", "z"}, "names of the x, y and z variables")
	flags.Duration("interval", time.Second, "interval between readings")
	if err := rootCmd.Execute(); err != nil {
		logger.Criticalf("%v", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	addr, _ := flags.GetString("addr")
	deviceID, _ := flags.GetString("device-id")
	secret, _ := flags.GetString("secret")
	names, _ := flags.GetStringSlice("names")
	interval, _ := flags.GetDuration("interval")
	if len(names) != 3 {
		return errgo.Newf("need exactly three variable names, got %d", len(names))
	}
	if interval <= 0 {
		return errgo.Newf("invalid interval %v", interval)
	}
	srv, err := cloudlinktest.NewServer(addr, deviceID, secret)
	if err != nil {
		return errgo.Notef(err, "cannot start server")
	}
	defer srv.Close()
	fmt.Println(srv.URL)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	sim := newSimulator(rand.New(rand.NewSource(time.Now().UnixNano())))
	publish(ctx, srv, sim, names, interval)
	logger.Infof("shutting down")
	return nil
}

// publish publishes a new reading every interval
// until the context is cancelled.
func publish(ctx context.Context, srv *cloudlinktest.Server, sim *simulator, names []string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		x, y, z := sim.next()
		values := []float64{x, y, z}
		// Variables update independently, so publish
		// them in a different order each time.
		for _, i := range sim.rand.Perm(3) {
			srv.Set(names[i], values[i])
		}
		logger.Debugf("published x=%.3f y=%.3f z=%.3f", x, y, z)
	}
}

// simulator produces readings for a device that's slowly
// rocking about its x axis, plus some noise.
type simulator struct {
	rand  *rand.Rand
	phase float64
}

func newSimulator(r *rand.Rand) *simulator {
	return &simulator{
		rand: r,
	}
}

const gravity = 9.81

func (s *simulator) next() (x, y, z float64) {
	s.phase += 0.2
	tilt := 0.5 * math.Sin(s.phase)
	x = s.noise()
	y = gravity*math.Sin(tilt) + s.noise()
	z = gravity*math.Cos(tilt) + s.noise()
	return round(x), round(y), round(z)
}

func (s *simulator) noise() float64 {
	return s.rand.NormFloat64() * 0.05
}

// round rounds v to three decimal places.
func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
