package common

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/veandco/go-sdl2/sdl"
)

const APPLICATION_NAME = "Procedural geometry ray tracing"
const APP_MAJOR, APP_MINOR, APP_PATCH = 1, 0, 0
const ENGINE_NAME = "No Engine"
const ENGINE_MAJOR, ENGINE_MINOR, ENGINE_PATCH = 1, 0, 0

const SDL_MAJOR, SDL_MINOR, SDL_PATCH = int(sdl.MAJOR_VERSION), int(sdl.MINOR_VERSION), int(sdl.PATCHLEVEL)

// Vulkan spec go bindings = v1.0.7, as per: https://github.com/goki/vulkan = 1.3.239
const VK_SPEC_MAJOR, VK_SPEC_MINOR, VK_SPEC_PATCH int = 1, 3, 239

// Window encapsulates the SDL window, the Vulkan instance and the surface created for it. The raytracer only
// needs the surface to pick a queue family that could present, presentation itself happens elsewhere.
type Window struct {
	sdlVersion string
	vkVersion  string

	Win       *sdl.Window
	Minimized bool
	Close     bool

	Inst *vk.Instance
	Surf *vk.Surface
}

// NewWindow initializes SDL, loads the Vulkan entry points through SDL, creates the instance (with validation
// layers if any are given) and a surface for the window. On tear down, Destroy releases them in reverse order.
func NewWindow(title string, w int32, h int32, validationLayers []string) (*Window, error) {
	window := &Window{
		sdlVersion: fmt.Sprintf("v%d.%d.%d", SDL_MAJOR, SDL_MINOR, SDL_PATCH),
		vkVersion:  fmt.Sprintf("v%d.%d.%d", VK_SPEC_MAJOR, VK_SPEC_MINOR, VK_SPEC_PATCH),
	}
	if err := window.initSDLWindow(title, w, h); err != nil {
		return nil, err
	}
	if err := window.initVulkan(); err != nil {
		window.Win.Destroy()
		return nil, err
	}
	if err := window.createVulkanInstance(validationLayers); err != nil {
		window.Win.Destroy()
		return nil, err
	}
	if err := window.createSdlVkSurface(); err != nil {
		vk.DestroyInstance(*window.Inst, nil)
		window.Win.Destroy()
		return nil, err
	}
	logger.Infof("generated SDL/Vulkan window - SDL: %s Vulkan spec: %s", window.sdlVersion, window.vkVersion)
	return window, nil
}

// Destroy tears down the vk.Surface, vk.Instance and sdl.Window created by NewWindow.
func (w *Window) Destroy() {
	vk.DestroySurface(*w.Inst, *w.Surf, nil)
	vk.DestroyInstance(*w.Inst, nil)
	if err := w.Win.Destroy(); err != nil {
		logger.Errorf("destroy window: %v", err)
	}
	sdl.Quit()
}

// State reports whether the window asked to close and whether it is minimized, as of the last PumpEvents.
func (w *Window) State() (closed bool, minimized bool) {
	return w.Close, w.Minimized
}

// PumpEvents drains the SDL queue and updates Close and Minimized. ESC and the window close button end the loop.
func (w *Window) PumpEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch ev := event.(type) {
		case *sdl.QuitEvent:
			w.Close = true
		case *sdl.WindowEvent:
			if ev.Event == sdl.WINDOWEVENT_MINIMIZED {
				w.Minimized = true
			} else if ev.Event == sdl.WINDOWEVENT_RESTORED {
				w.Minimized = false
			}
		case *sdl.KeyboardEvent:
			if ev.Keysym.Sym == sdl.K_ESCAPE {
				w.Close = true
			}
		}
	}
}

func (w *Window) initSDLWindow(title string, width int32, height int32) error {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return fmt.Errorf("initialize SDL: %w", err)
	}
	win, err := sdl.CreateWindow(
		title,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		width,
		height,
		sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN,
	)
	if err != nil {
		return fmt.Errorf("create SDL window for use with Vulkan: %w", err)
	}
	logger.Debugf("created SDL window %q (%dx%d)", title, width, height)
	w.Win = win
	return nil
}

func (w *Window) initVulkan() error {
	// Find and load Vulkan addresses to be able to call driver level functions via provided mechanism
	vk.SetGetInstanceProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err := vk.Init(); err != nil {
		return fmt.Errorf("initialize Vulkan API: %w", err)
	}
	return nil
}

func (w *Window) createVulkanInstance(validationLayers []string) error {
	requiredExtensions := w.Win.VulkanGetInstanceExtensions()
	supportedExtNames, err := ReadInstanceExtensionPropertyNames()
	if err != nil {
		return err
	}
	if missing := MissingFromB(requiredExtensions, supportedExtNames); len(missing) > 0 {
		return fmt.Errorf("unsupported instance extensions: %v", missing)
	}

	if len(validationLayers) > 0 {
		supportedLayerNames, err := ReadInstanceLayerPropertyNames()
		if err != nil {
			return err
		}
		if missing := MissingFromB(validationLayers, supportedLayerNames); len(missing) > 0 {
			logger.Warningf("validation layers %v not available, continuing without validation", missing)
			validationLayers = nil
		}
	}

	applicationInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   TerminatedStr(APPLICATION_NAME),
		ApplicationVersion: vk.MakeVersion(APP_MAJOR, APP_MINOR, APP_PATCH),
		PEngineName:        TerminatedStr(ENGINE_NAME),
		EngineVersion:      vk.MakeVersion(ENGINE_MAJOR, ENGINE_MINOR, ENGINE_PATCH),
		ApiVersion:         vk.MakeVersion(VK_SPEC_MAJOR, VK_SPEC_MINOR, VK_SPEC_PATCH),
	}
	createInfo := &vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        applicationInfo,
		EnabledExtensionCount:   uint32(len(requiredExtensions)),
		PpEnabledExtensionNames: TerminatedStrs(requiredExtensions),
		EnabledLayerCount:       uint32(len(validationLayers)),
		PpEnabledLayerNames:     TerminatedStrs(validationLayers),
	}
	ins, err := VkCreateInstance(createInfo, nil)
	if err != nil {
		return fmt.Errorf("create vk instance: %w", err)
	}
	w.Inst = &ins
	return nil
}

func (w *Window) createSdlVkSurface() error {
	surf, err := SdlCreateVkSurface(w.Win, *w.Inst)
	if err != nil {
		return fmt.Errorf("create SDL window's Vulkan surface: %w", err)
	}
	w.Surf = &surf
	return nil
}
