package network

type HookAction uint

const (
	HookActionNOOP HookAction = iota
	HookActionDROP
)

// HookFn observes a frame crossing an interface and may drop it.
// The frame must not be retained or modified. Hooks run with the interface
// locked and must not call back into it.
type HookFn func(iface *Interface, frame Ethernet) HookAction

type Hooks struct {
	RX HookFn // frames received from the link, after header validation
	TX HookFn // frames about to be queued for the link
}

func noopHook(*Interface, Ethernet) HookAction { return HookActionNOOP }

func runHook(fn HookFn, iface *Interface, frame Ethernet) HookAction {
	if fn == nil {
		return HookActionNOOP
	}

	return fn(iface, frame)
}

// ChainHookBefore runs fn ahead of org; org only sees frames fn lets through
func ChainHookBefore(org HookFn, fn HookFn) HookFn {
	if org == nil {
		org = noopHook
	}

	return func(iface *Interface, frame Ethernet) HookAction {
		res := fn(iface, frame)

		if res == HookActionNOOP {
			return org(iface, frame)
		}

		return res
	}
}

// ChainHookAfter runs fn once org has let the frame through
func ChainHookAfter(org HookFn, fn HookFn) HookFn {
	if org == nil {
		org = noopHook
	}

	return func(iface *Interface, frame Ethernet) HookAction {
		res := org(iface, frame)

		if res == HookActionNOOP {
			return fn(iface, frame)
		}

		return res
	}
}
