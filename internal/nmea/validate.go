package nmea

import (
	"fmt"
	"strconv"

	gonmea "github.com/adrianmo/go-nmea"
	"github.com/sirupsen/logrus"
)

// Fix summarizes a successfully parsed GGA sentence (spec §2.2 domain
// stack: decoded for logging only, never for protocol decisions).
type Fix struct {
	FixQuality    int64
	NumSatellites int64
	HDOP          float64
}

// Validate parses sentence with github.com/adrianmo/go-nmea and logs the
// result. A parse failure is logged at warn level but is not an error the
// caller must act on — spec §4.9 requires framing and relaying the
// receiver's GGA, not validating it, so the sentence is forwarded either
// way.
func Validate(sentence string, log logrus.FieldLogger) (Fix, error) {
	parsed, err := gonmea.Parse(sentence)
	if err != nil {
		if log != nil {
			log.WithError(err).Warn("nmea: sentence did not parse, forwarding verbatim")
		}
		return Fix{}, fmt.Errorf("nmea: parse: %w", err)
	}
	gga, ok := parsed.(gonmea.GGA)
	if !ok || parsed.DataType() != gonmea.TypeGGA {
		return Fix{}, fmt.Errorf("nmea: unexpected sentence type %s", parsed.DataType())
	}
	// go-nmea declares GGA.FixQuality as the raw fix-quality digit string
	// (e.g. "1", "4"); parse it to match NumSatellites/HDOP's numeric type.
	quality, _ := strconv.ParseInt(gga.FixQuality, 10, 64)
	fix := Fix{
		FixQuality:    quality,
		NumSatellites: gga.NumSatellites,
		HDOP:          gga.HDOP,
	}
	if log != nil {
		log.WithFields(logrus.Fields{
			"fix_quality": fix.FixQuality,
			"satellites":  fix.NumSatellites,
			"hdop":        fix.HDOP,
		}).Debug("nmea: parsed GGA sentence")
	}
	return fix, nil
}
