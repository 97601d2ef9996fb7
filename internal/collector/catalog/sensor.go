// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"time"

	goccyjson "github.com/goccy/go-json"

	"github.com/tomtom215/meraki-dashboard-exporter/internal/collector"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/meraki"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/merakitypes"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/metrics"
)

// SensorCollector is the sole FAST-tier collector: for each organization
// it fetches the latest sensor readings in one call and dispatches each
// reading by metric type, per spec.md §4.5.1.
type SensorCollector struct {
	d Deps

	temperatureCelsius *metrics.Handle
	humidityPercent    *metrics.Handle
	doorOpen           *metrics.Handle
	waterDetected      *metrics.Handle
	co2Ppm             *metrics.Handle
	tvocPpb            *metrics.Handle
	pm25Ugm3           *metrics.Handle
	noiseDb            *metrics.Handle
	batteryPercent     *metrics.Handle
	airQualityIndex    *metrics.Handle
	voltageVolts       *metrics.Handle
	currentAmps        *metrics.Handle
	realPowerWatts     *metrics.Handle
	apparentPowerVa    *metrics.Handle
	powerFactorRatio   *metrics.Handle
	frequencyHz        *metrics.Handle
	downstreamPowerOn  *metrics.Handle
	remoteLockoutOn    *metrics.Handle
	indoorAirQuality   *metrics.Handle
}

// NewSensorCollector constructs the FAST-tier sensor collector.
func NewSensorCollector(d Deps) *SensorCollector { return &SensorCollector{d: d} }

func (c *SensorCollector) Name() string           { return "sensor" }
func (c *SensorCollector) Tier() merakitypes.Tier { return merakitypes.TierFast }

func (c *SensorCollector) InitializeMetrics(reg *metrics.Registry) {
	c.temperatureCelsius = reg.NewGauge("meraki_mt_temperature_celsius", "Sensor temperature reading", "serial")
	c.humidityPercent = reg.NewGauge("meraki_mt_humidity_percent", "Sensor relative humidity reading", "serial")
	c.doorOpen = reg.NewGauge("meraki_mt_door_open", "Sensor door-open state", "serial")
	c.waterDetected = reg.NewGauge("meraki_mt_water_detected", "Sensor water-detection state", "serial")
	c.co2Ppm = reg.NewGauge("meraki_mt_co2_ppm", "Sensor CO2 reading", "serial")
	c.tvocPpb = reg.NewGauge("meraki_mt_tvoc_ppb", "Sensor total volatile organic compounds reading", "serial")
	c.pm25Ugm3 = reg.NewGauge("meraki_mt_pm25_ugm3", "Sensor PM2.5 reading", "serial")
	c.noiseDb = reg.NewGauge("meraki_mt_noise_db", "Sensor ambient noise reading", "serial")
	c.batteryPercent = reg.NewGauge("meraki_mt_battery_percent", "Sensor battery level", "serial")
	c.airQualityIndex = reg.NewGauge("meraki_mt_air_quality_index", "Sensor air quality index reading", "serial")
	c.voltageVolts = reg.NewGauge("meraki_mt_voltage_volts", "Sensor voltage reading", "serial")
	c.currentAmps = reg.NewGauge("meraki_mt_current_amps", "Sensor current reading", "serial")
	c.realPowerWatts = reg.NewGauge("meraki_mt_real_power_watts", "Sensor real power reading", "serial")
	c.apparentPowerVa = reg.NewGauge("meraki_mt_apparent_power_va", "Sensor apparent power reading", "serial")
	c.powerFactorRatio = reg.NewGauge("meraki_mt_power_factor_ratio", "Sensor power factor reading", "serial")
	c.frequencyHz = reg.NewGauge("meraki_mt_frequency_hz", "Sensor line frequency reading", "serial")
	c.downstreamPowerOn = reg.NewGauge("meraki_mt_downstream_power_enabled", "Sensor downstream power relay enabled state", "serial")
	c.remoteLockoutOn = reg.NewGauge("meraki_mt_remote_lockout_enabled", "Sensor remote lockout switch state", "serial")
	c.indoorAirQuality = reg.NewGauge("meraki_mt_indoor_air_quality_score", "Sensor indoor air quality composite score", "serial")
}

func (c *SensorCollector) Collect(ctx context.Context) error {
	orgs, err := c.d.Inv.GetOrganizations(ctx)
	if err != nil {
		return err
	}

	collector.RunBatchedWithWait(ctx, orgs, c.d.Batch.Size, c.d.Batch.ConcurrencyLimit, c.d.Batch.Delay,
		func(wait time.Duration) { c.d.Inst.TrackOrgWait(c.Tier(), wait) },
		func(ctx context.Context, org merakitypes.Organization) {
			track := func(cat merakitypes.ErrorCategory) { c.d.Inst.TrackError(c.Name(), c.Tier(), cat) }
			_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
				return c.collectOrg(ctx, org)
			})
	})
	return nil
}

// sensorReading is one entry of GET /organizations/{id}/sensor/readings/latest
// as decoded here: a device serial, a metric name, and one reading object
// whose metric-type fields are read independently by emit.
type sensorReading struct {
	Serial  string `json:"serial"`
	Metric  string `json:"metric"`
	Reading struct {
		Temperature *struct {
			Celsius float64 `json:"celsius"`
		} `json:"temperature"`
		RawTemperature *struct {
			Celsius float64 `json:"celsius"`
		} `json:"rawTemperature"`
		Humidity *struct {
			RelativePercentage float64 `json:"relativePercentage"`
		} `json:"humidity"`
		Door *struct {
			Open bool `json:"open"`
		} `json:"door"`
		Water *struct {
			Present bool `json:"present"`
		} `json:"water"`
		Co2 *struct {
			Concentration float64 `json:"concentration"`
		} `json:"co2"`
		Tvoc *struct {
			Concentration float64 `json:"concentration"`
		} `json:"tvoc"`
		Pm25 *struct {
			Concentration float64 `json:"concentration"`
		} `json:"pm25"`
		Noise *struct {
			Ambient struct {
				Level float64 `json:"level"`
			} `json:"ambient"`
		} `json:"noise"`
		Battery *struct {
			Percentage float64 `json:"percentage"`
		} `json:"battery"`
		IndoorAirQuality *struct {
			Score float64 `json:"score"`
		} `json:"indoorAirQuality"`
		Voltage *struct {
			Level float64 `json:"level"`
		} `json:"voltage"`
		Current *struct {
			Draw float64 `json:"draw"`
		} `json:"current"`
		RealPower *struct {
			Draw float64 `json:"draw"`
		} `json:"realPower"`
		ApparentPower *struct {
			Draw float64 `json:"draw"`
		} `json:"apparentPower"`
		PowerFactor *struct {
			Percentage float64 `json:"percentage"`
		} `json:"powerFactor"`
		Frequency *struct {
			Level float64 `json:"level"`
		} `json:"frequency"`
		DownstreamPower *struct {
			Enabled bool `json:"enabled"`
		} `json:"downstreamPower"`
		RemoteLockoutSwitch *struct {
			Locked bool `json:"locked"`
		} `json:"remoteLockoutSwitch"`
	} `json:"reading"`
}

func (c *SensorCollector) collectOrg(ctx context.Context, org merakitypes.Organization) error {
	endpoint := "/organizations/%s/sensor/readings/latest"
	body, err := c.d.Client.GetPaginated(ctx, endpoint, meraki.PaginatedParams{OrgID: org.ID, PathArg: org.ID, Optional: true, Tier: c.Tier()}, true)
	if err != nil {
		if meraki.IsNotAvailable(err) {
			return nil
		}
		return err
	}

	var readings []sensorReading
	if err := goccyjson.Unmarshal(body, &readings); err != nil {
		return nil
	}

	for _, r := range readings {
		c.emit(r)
	}
	return nil
}

// emit dispatches one reading to its metric by type. When upstream emits
// both temperature and rawTemperature for the same sample, only
// temperature is kept, per spec.md §4.5.1.
func (c *SensorCollector) emit(r sensorReading) {
	labels := []string{r.Serial}
	reading := r.Reading

	switch {
	case reading.Temperature != nil:
		c.write(c.temperatureCelsius, labels, reading.Temperature.Celsius)
	case reading.RawTemperature != nil:
		// Only emitted when temperature itself was absent.
		c.write(c.temperatureCelsius, labels, reading.RawTemperature.Celsius)
	}

	if reading.Humidity != nil {
		c.write(c.humidityPercent, labels, reading.Humidity.RelativePercentage)
	}
	if reading.Door != nil {
		c.write(c.doorOpen, labels, boolToFloat(reading.Door.Open))
	}
	if reading.Water != nil {
		c.write(c.waterDetected, labels, boolToFloat(reading.Water.Present))
	}
	if reading.Co2 != nil {
		c.write(c.co2Ppm, labels, reading.Co2.Concentration)
	}
	if reading.Tvoc != nil {
		c.write(c.tvocPpb, labels, reading.Tvoc.Concentration)
	}
	if reading.Pm25 != nil {
		c.write(c.pm25Ugm3, labels, reading.Pm25.Concentration)
	}
	if reading.Noise != nil {
		c.write(c.noiseDb, labels, reading.Noise.Ambient.Level)
	}
	if reading.Battery != nil {
		c.write(c.batteryPercent, labels, reading.Battery.Percentage)
	}
	if reading.IndoorAirQuality != nil {
		c.write(c.airQualityIndex, labels, reading.IndoorAirQuality.Score)
		c.write(c.indoorAirQuality, labels, reading.IndoorAirQuality.Score)
	}
	if reading.Voltage != nil {
		c.write(c.voltageVolts, labels, reading.Voltage.Level)
	}
	if reading.Current != nil {
		c.write(c.currentAmps, labels, reading.Current.Draw)
	}
	if reading.RealPower != nil {
		c.write(c.realPowerWatts, labels, reading.RealPower.Draw)
	}
	if reading.ApparentPower != nil {
		c.write(c.apparentPowerVa, labels, reading.ApparentPower.Draw)
	}
	if reading.PowerFactor != nil {
		c.write(c.powerFactorRatio, labels, reading.PowerFactor.Percentage/100)
	}
	if reading.Frequency != nil {
		c.write(c.frequencyHz, labels, reading.Frequency.Level)
	}
	if reading.DownstreamPower != nil {
		c.write(c.downstreamPowerOn, labels, boolToFloat(reading.DownstreamPower.Enabled))
	}
	if reading.RemoteLockoutSwitch != nil {
		c.write(c.remoteLockoutOn, labels, boolToFloat(reading.RemoteLockoutSwitch.Locked))
	}
}

func (c *SensorCollector) write(h *metrics.Handle, labels []string, value float64) {
	_ = c.d.Inst.WriteGauge(h, labels, value, merakitypes.TierFast)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
