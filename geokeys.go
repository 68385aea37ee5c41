package geopix

import (
	"fmt"
	"strconv"
)

// A GeoKey identifies an entry in a GeoKeyDirectory.
type GeoKey uint16

const (
	GeoKeyGTModelType   GeoKey = 1024
	GeoKeyGTRasterType  GeoKey = 1025
	GeoKeyGTCitation    GeoKey = 1026
	GeoKeyGeodeticCRS   GeoKey = 2048
	GeoKeyGeogCitation  GeoKey = 2049
	GeoKeyGeodeticDatum GeoKey = 2050
	GeoKeyAngularUnits  GeoKey = 2054
	GeoKeyEllipsoid     GeoKey = 2056
	GeoKeyProjectedCRS  GeoKey = 3072
	GeoKeyPCSCitation   GeoKey = 3073
	GeoKeyLinearUnits   GeoKey = 3076
	GeoKeyVertical      GeoKey = 4096
	GeoKeyVerticalUnits GeoKey = 4099
)

var geoKeyNames = map[GeoKey]string{
	GeoKeyGTModelType:   "GTModelType",
	GeoKeyGTRasterType:  "GTRasterType",
	GeoKeyGTCitation:    "GTCitation",
	GeoKeyGeodeticCRS:   "GeodeticCRS",
	GeoKeyGeogCitation:  "GeogCitation",
	GeoKeyGeodeticDatum: "GeodeticDatum",
	GeoKeyAngularUnits:  "GeogAngularUnits",
	GeoKeyEllipsoid:     "Ellipsoid",
	GeoKeyProjectedCRS:  "ProjectedCRS",
	GeoKeyPCSCitation:   "PCSCitation",
	GeoKeyLinearUnits:   "ProjLinearUnits",
	GeoKeyVertical:      "VerticalCRS",
	GeoKeyVerticalUnits: "VerticalUnits",
}

func (k GeoKey) String() string {
	if name, ok := geoKeyNames[k]; ok {
		return name
	}
	return strconv.Itoa(int(k))
}

// GeoKeys are the parsed contents of a GeoKeyDirectory. They are
// informational only and do not affect lookups.
type GeoKeys struct {
	Params       map[GeoKey]int
	DoubleParams map[GeoKey]float64
	ASCIIParams  map[GeoKey]string
}

// ParseGeoKeys parses a GeoKeyDirectory and its companion double and ASCII
// parameter tags.
func ParseGeoKeys(directory []uint16, doubleParams []float64, asciiParams string) (*GeoKeys, error) {
	if len(directory) < 4 {
		return nil, fmt.Errorf("%w: GeoKeyDirectory has %d values", ErrFormat, len(directory))
	}
	if version, revision := directory[0], directory[1]; version != 1 || revision != 1 {
		return nil, fmt.Errorf("%w: GeoKeyDirectory version %d.%d", ErrFormat, version, revision)
	}
	numberOfKeys := int(directory[3])
	if len(directory) != 4+4*numberOfKeys {
		return nil, fmt.Errorf("%w: GeoKeyDirectory has %d values for %d keys", ErrFormat, len(directory), numberOfKeys)
	}

	geoKeys := &GeoKeys{
		Params:       make(map[GeoKey]int),
		DoubleParams: make(map[GeoKey]float64),
		ASCIIParams:  make(map[GeoKey]string),
	}
	for i := range numberOfKeys {
		entry := directory[4+4*i : 4+4*(i+1)]
		key := GeoKey(entry[0])
		location, count, value := entry[1], int(entry[2]), int(entry[3])
		switch location {
		case 0:
			geoKeys.Params[key] = value
		case TagGeoDoubleParams:
			if count != 1 || len(doubleParams) <= value {
				return nil, fmt.Errorf("%w: GeoKey %s: bad double param reference", ErrFormat, key)
			}
			geoKeys.DoubleParams[key] = doubleParams[value]
		case TagGeoASCIIParams:
			if len(asciiParams) < value+count {
				return nil, fmt.Errorf("%w: GeoKey %s: bad ASCII param reference", ErrFormat, key)
			}
			geoKeys.ASCIIParams[key] = asciiParams[value : value+count]
		default:
			return nil, fmt.Errorf("%w: GeoKey %s: unsupported location %d", ErrFormat, key, location)
		}
	}
	return geoKeys, nil
}

// parseGeoKeyTags parses the GeoKey tags from tags. It returns nil if the
// directory is absent.
func parseGeoKeyTags(tags TagSource, asciiParams string) (*GeoKeys, error) {
	directoryValues := tags.TagDoubles(TagGeoKeyDirectory)
	if directoryValues == nil {
		return nil, nil
	}
	directory := make([]uint16, len(directoryValues))
	for i, v := range directoryValues {
		directory[i] = uint16(v)
	}
	return ParseGeoKeys(directory, tags.TagDoubles(TagGeoDoubleParams), asciiParams)
}
