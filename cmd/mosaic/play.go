package main

import (
	"context"
	"image"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tmpim/mosaic"
	"github.com/tmpim/mosaic/record"
	"github.com/tmpim/mosaic/term"
)

func playAction(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	logger := newLogger(c)

	f, err := os.Open(c.Args().First())
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer f.Close()

	rd, err := record.OpenCast(f)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer rd.Close()

	opts := rd.Options()
	opts.Logger = logger
	conv, err := mosaic.NewConverter(opts)
	if err != nil {
		return cli.Exit(err, 1)
	}

	var (
		present func(*mosaic.Rendered) error
		tick    <-chan time.Time
	)

	if out := c.String("output"); out != "" {
		rec, err := record.Open(context.Background(), out, record.Options{Framerate: c.Int("fps")})
		if err != nil {
			return cli.Exit(err, 1)
		}
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Println("mosaic: finalize output:", err)
			}
		}()
		present = rec.WriteFrame
	} else {
		colors, err := term.ParseColorMode(c.String("colors"))
		if err != nil {
			return cli.Exit(err, 1)
		}
		display := term.New(os.Stdout, term.Options{Colors: colors, SyncOutput: true})
		defer display.Close()
		present = display.Present

		if fps := c.Int("fps"); fps > 0 {
			t := time.NewTicker(time.Second / time.Duration(fps))
			defer t.Stop()
			tick = t.C
		}
	}

	ctl := mosaic.NewControl(false)
	ctx, cancel := stopOnInterrupt(ctl, logger)
	defer cancel()

	canvas := &mosaic.Canvas{}
	for i := 0; ctl.State() != mosaic.StateStopped && ctx.Err() == nil; i++ {
		frame, err := rd.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return cli.Exit(err, 1)
		}
		if err := frame.Validate(conv.Encoding()); err != nil {
			return cli.Exit(err, 1)
		}

		canvas.Reset(image.Pt(frame.Width, frame.Height))
		conv.Render(canvas.RGBA, frame.Commands)

		if err := present(&mosaic.Rendered{
			Index:    i,
			Image:    canvas.RGBA,
			Commands: frame.Commands,
			Encoding: conv.Encoding(),
		}); err != nil {
			return cli.Exit(err, 1)
		}

		if tick != nil {
			<-tick
		}
	}

	return nil
}
