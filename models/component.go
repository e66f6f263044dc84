package models

import (
	"sort"

	"github.com/google/uuid"
)

// ComponentType selects which spec table describes a product.
type ComponentType string

const (
	ComponentCPU         ComponentType = "cpu"
	ComponentGPU         ComponentType = "gpu"
	ComponentMemory      ComponentType = "memory"
	ComponentMotherboard ComponentType = "motherboard"
	ComponentStorage     ComponentType = "storage"
	ComponentPSU         ComponentType = "psu"
	ComponentCase        ComponentType = "case"
	ComponentCooler      ComponentType = "cooler"
	ComponentAccessory   ComponentType = "accessory"
)

// ComponentSpec is a subtype row keyed by product_id.
type ComponentSpec interface {
	Type() ComponentType
	SetProductID(id uuid.UUID)
}

// SpecBase keys every spec table by product.
type SpecBase struct {
	ProductID uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
}

func (s *SpecBase) SetProductID(id uuid.UUID) { s.ProductID = id }

type CPUSpec struct {
	SpecBase
	Socket             string `json:"socket" validate:"required"`
	Cores              int    `json:"cores" validate:"required,min=1"`
	Threads            int    `json:"threads" validate:"required,gtefield=Cores"`
	BaseClockMHz       int    `json:"base_clock_mhz" validate:"required,min=1"`
	BoostClockMHz      int    `json:"boost_clock_mhz" validate:"omitempty,gtefield=BaseClockMHz"`
	TDPWatts           int    `json:"tdp_watts" validate:"required,min=1"`
	IntegratedGraphics bool   `json:"integrated_graphics"`
}

func (*CPUSpec) Type() ComponentType { return ComponentCPU }

type GPUSpec struct {
	SpecBase
	Chipset       string `json:"chipset" validate:"required"`
	MemoryGB      int    `json:"memory_gb" validate:"required,min=1"`
	MemoryType    string `json:"memory_type" validate:"required"`
	BoostClockMHz int    `json:"boost_clock_mhz" validate:"omitempty,min=1"`
	LengthMM      int    `json:"length_mm" validate:"required,min=1"`
	TDPWatts      int    `json:"tdp_watts" validate:"required,min=1"`
}

func (*GPUSpec) Type() ComponentType { return ComponentGPU }

type MemorySpec struct {
	SpecBase
	MemoryType string `json:"type" gorm:"column:memory_type" validate:"required,oneof=DDR4 DDR5"`
	CapacityGB int    `json:"capacity_gb" validate:"required,min=1"`
	Modules    int    `json:"modules" validate:"required,min=1"`
	SpeedMHz   int    `json:"speed_mhz" validate:"required,min=1"`
	CASLatency int    `json:"cas_latency" validate:"omitempty,min=1"`
}

func (*MemorySpec) Type() ComponentType { return ComponentMemory }

type MotherboardSpec struct {
	SpecBase
	Socket      string `json:"socket" validate:"required"`
	Chipset     string `json:"chipset" validate:"required"`
	FormFactor  string `json:"form_factor" validate:"required,oneof=ATX mATX ITX E-ATX"`
	MemoryType  string `json:"memory_type" validate:"required,oneof=DDR4 DDR5"`
	MemorySlots int    `json:"memory_slots" validate:"required,min=1"`
	MaxMemoryGB int    `json:"max_memory_gb" validate:"required,min=1"`
}

func (*MotherboardSpec) Type() ComponentType { return ComponentMotherboard }

type StorageSpec struct {
	SpecBase
	Kind       string `json:"kind" validate:"required,oneof=ssd hdd nvme"`
	CapacityGB int    `json:"capacity_gb" validate:"required,min=1"`
	Interface  string `json:"interface" validate:"required"`
	ReadMBps   int    `json:"read_mbps" validate:"omitempty,min=1"`
	WriteMBps  int    `json:"write_mbps" validate:"omitempty,min=1"`
}

func (*StorageSpec) Type() ComponentType { return ComponentStorage }

type PSUSpec struct {
	SpecBase
	Wattage    int    `json:"wattage" validate:"required,min=1"`
	Efficiency string `json:"efficiency" validate:"required"`
	Modular    bool   `json:"modular"`
}

func (*PSUSpec) Type() ComponentType { return ComponentPSU }

type CaseSpec struct {
	SpecBase
	FormFactor     string `json:"form_factor" validate:"required,oneof=ATX mATX ITX E-ATX"`
	MaxGPULengthMM int    `json:"max_gpu_length_mm" validate:"required,min=1"`
	FansIncluded   int    `json:"fans_included" validate:"gte=0"`
}

func (*CaseSpec) Type() ComponentType { return ComponentCase }

type CoolerSpec struct {
	SpecBase
	Kind          string   `json:"kind" validate:"required,oneof=air liquid"`
	SocketSupport []string `json:"socket_support" gorm:"serializer:json;type:jsonb" validate:"required,min=1,dive,required"`
	HeightMM      int      `json:"height_mm" validate:"omitempty,min=1"`
	TDPWatts      int      `json:"tdp_watts" validate:"required,min=1"`
}

func (*CoolerSpec) Type() ComponentType { return ComponentCooler }

var componentFactories = map[ComponentType]func() ComponentSpec{
	ComponentCPU:         func() ComponentSpec { return &CPUSpec{} },
	ComponentGPU:         func() ComponentSpec { return &GPUSpec{} },
	ComponentMemory:      func() ComponentSpec { return &MemorySpec{} },
	ComponentMotherboard: func() ComponentSpec { return &MotherboardSpec{} },
	ComponentStorage:     func() ComponentSpec { return &StorageSpec{} },
	ComponentPSU:         func() ComponentSpec { return &PSUSpec{} },
	ComponentCase:        func() ComponentSpec { return &CaseSpec{} },
	ComponentCooler:      func() ComponentSpec { return &CoolerSpec{} },
	ComponentAccessory:   nil,
}

// Valid reports whether t is a known component type.
func (t ComponentType) Valid() bool {
	_, ok := componentFactories[t]
	return ok
}

// HasSpec reports whether t carries a spec row.
func (t ComponentType) HasSpec() bool {
	return componentFactories[t] != nil
}

// NewComponentSpec returns an empty spec for t, or nil for types without one.
func NewComponentSpec(t ComponentType) ComponentSpec {
	if f := componentFactories[t]; f != nil {
		return f()
	}
	return nil
}

// ComponentTypes lists the known types in a stable order.
func ComponentTypes() []ComponentType {
	out := make([]ComponentType, 0, len(componentFactories))
	for t := range componentFactories {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ComponentModels returns one value per spec table, for migrations.
func ComponentModels() []any {
	var out []any
	for _, t := range ComponentTypes() {
		if spec := NewComponentSpec(t); spec != nil {
			out = append(out, spec)
		}
	}
	return out
}
