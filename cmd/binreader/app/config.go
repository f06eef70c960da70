package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"
)

type ImageFormat string

type Config struct {
	InputFile  string
	OutputFile string
	Format     ImageFormat
	Window     time.Duration
	TimeZone   *time.Location
	Verbose    bool
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Format:   ImagePNG,
		Window:   time.Second,
		TimeZone: time.Local,
	}
}

// NewConfigFromArgs parses the command line arguments, excluding the program name
func NewConfigFromArgs(args []string) (*Config, error) {
	c := NewConfig()

	fs := flag.NewFlagSet("binreader", flag.ContinueOnError)

	var imageFormat, timeZone string
	fs.StringVar(&c.InputFile, "i", "", "Path to the session log file")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output image, without extension. No image is rendered when empty")
	fs.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	fs.DurationVar(&c.Window, "window", c.Window, "Length of the signal tail to plot")
	fs.StringVar(&timeZone, "tz", "", "Time zone of the plot timestamp (default: local)")
	fs.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	imageFormat = strings.ToLower(imageFormat)

	var err error
	if c.InputFile == "" {
		err = errors.New("input file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if c.Window <= 0 {
		err = fmt.Errorf("window must be positive: %s", c.Window)
	} else if timeZone != "" {
		if c.TimeZone, err = time.LoadLocation(timeZone); err != nil {
			err = fmt.Errorf("invalid time zone: %s", timeZone)
		}
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	if c.OutputFile != "" {
		c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	}
	return c, nil
}
