package agent

import (
	"system-mqtt/internal/config"
	"system-mqtt/internal/homeassistant"
	"system-mqtt/pkg/metrics"
)

// BuildMetrics assembles the metric set for a host: uptime, CPU, memory and
// swap gauges, the battery sensors, and one filesystem gauge per configured
// drive.
func BuildMetrics(cfg *config.Config) []Metric {
	metricList := []Metric{
		{
			Entity: homeassistant.Entity{ID: "uptime", Component: homeassistant.ComponentSensor, Unit: "days", Icon: "mdi:timer-sand"},
			Source: metrics.NewUptime(),
		},
		{
			Entity: homeassistant.Entity{ID: "cpu_usage", Component: homeassistant.ComponentSensor, Unit: "%", Icon: "mdi:gauge"},
			Source: metrics.NewCPU(),
		},
		{
			Entity: homeassistant.Entity{ID: "memory_usage", Component: homeassistant.ComponentSensor, Unit: "%", Icon: "mdi:gauge"},
			Source: metrics.NewMemory(),
		},
		{
			Entity: homeassistant.Entity{ID: "swap_usage", Component: homeassistant.ComponentSensor, Unit: "%", Icon: "mdi:gauge"},
			Source: metrics.NewSwap(),
		},
		{
			Entity: homeassistant.Entity{ID: "battery_level", Component: homeassistant.ComponentSensor, DeviceClass: "battery", Unit: "%", Icon: "mdi:battery"},
			Source: metrics.NewBatteryLevel(),
		},
		{
			Entity: homeassistant.Entity{ID: "battery_state", Component: homeassistant.ComponentSensor, Icon: "mdi:battery"},
			Source: metrics.NewBatteryState(),
		},
		{
			Entity: homeassistant.Entity{ID: "battery_charging", Component: homeassistant.ComponentBinarySensor, DeviceClass: "battery_charging"},
			Source: metrics.NewBatteryCharging(),
		},
	}

	for _, drive := range cfg.Drives {
		metricList = append(metricList, Metric{
			Entity: homeassistant.Entity{ID: "drive_" + drive.Name, Component: homeassistant.ComponentSensor, Unit: "%", Icon: "mdi:folder"},
			Source: metrics.NewDrive(drive.Path),
		})
	}

	return metricList
}
