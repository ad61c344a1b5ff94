package executor

// The python harness executes skill code inside a sandbox with a
// fixed allow-list of builtins. The sandbox is a convenience boundary
// for catching sloppy generated code, not a security guarantee.
// Imports still work because __import__ stays on the list, so a skill
// brings in exactly the modules its declared dependencies provide.
// open stays on the list too: bundled skills read their data files.
const harnessCore = `import builtins
import io
import json
import sys
import traceback

SAFE_BUILTIN_NAMES = [
    "abs", "all", "any", "ascii", "bin", "bool", "bytearray", "bytes",
    "callable", "chr", "complex", "dict", "divmod", "enumerate", "filter",
    "float", "format", "frozenset", "getattr", "hasattr", "hash", "hex",
    "id", "int", "isinstance", "issubclass", "iter", "len", "list", "map",
    "max", "min", "next", "object", "oct", "open", "ord", "pow", "print",
    "range", "repr", "reversed", "round", "set", "setattr", "slice", "sorted",
    "str", "sum", "tuple", "type", "vars", "zip", "__import__",
    "BaseException", "Exception", "ArithmeticError", "AssertionError",
    "AttributeError", "ConnectionError", "FileNotFoundError", "ImportError",
    "IndexError", "KeyError", "LookupError", "NameError",
    "NotImplementedError", "OSError", "OverflowError", "RuntimeError",
    "StopIteration", "TimeoutError", "TypeError", "UnicodeDecodeError",
    "UnicodeEncodeError", "ValueError", "ZeroDivisionError",
]


def safe_builtins():
    safe = {}
    for name in SAFE_BUILTIN_NAMES:
        if hasattr(builtins, name):
            safe[name] = getattr(builtins, name)
    return safe


def run_payload(payload):
    code = payload.get("code", "")
    args = payload.get("args") or {}
    sandbox = {"__builtins__": safe_builtins(), "__name__": "__skill__"}
    old_stdout, old_stderr = sys.stdout, sys.stderr
    stdout_capture = io.StringIO()
    stderr_capture = io.StringIO()
    sys.stdout, sys.stderr = stdout_capture, stderr_capture
    try:
        exec(compile(code, "<skill>", "exec"), sandbox, sandbox)
        if "run" not in sandbox:
            raise ValueError("Function 'run' not found in skill code")
        result = sandbox["run"](**args)
        return {
            "success": True,
            "result": str(result),
            "stdout": stdout_capture.getvalue(),
            "stderr": stderr_capture.getvalue(),
        }
    except BaseException as e:
        return {
            "success": False,
            "error": "%s: %s" % (type(e).__name__, e),
            "stderr": traceback.format_exc(),
        }
    finally:
        sys.stdout, sys.stderr = old_stdout, old_stderr
`

// runHarness reads a single {"code", "args"} request from stdin and
// prints the result as one JSON object. Used by the local runner, one
// process per execution.
const runHarness = harnessCore + `

print(json.dumps(run_payload(json.load(sys.stdin))))
`

// serverHarness turns the harness into a line-oriented JSON server
// for the docker worker: one request per line on stdin, one response
// per line on stdout. Ops: "run", "check", "install".
const serverHarness = harnessCore + `

import importlib
import subprocess


def handle(req):
    op = req.get("op", "run")
    if op == "check":
        try:
            compile(req.get("code", ""), "<skill>", "exec")
            return {"success": True}
        except SyntaxError as e:
            return {"success": False, "error": "Syntax error: %s" % e}
        except Exception as e:
            return {"success": False, "error": "Validation error: %s" % e}
    if op == "install":
        package = req.get("package", "")
        try:
            importlib.import_module(package)
            return {"success": True}
        except ImportError:
            pass
        except Exception as e:
            return {"success": False, "error": "Error installing %s: %s" % (package, e)}
        try:
            proc = subprocess.run(
                [sys.executable, "-m", "pip", "install", package, "--quiet"],
                capture_output=True,
                text=True,
                timeout=60,
            )
        except Exception as e:
            return {"success": False, "error": "Error installing %s: %s" % (package, e)}
        if proc.returncode != 0:
            return {"success": False, "error": "Failed to install %s: %s" % (package, proc.stderr.strip())}
        return {"success": True}
    return run_payload(req)


for line in sys.stdin:
    line = line.strip()
    if not line:
        continue
    try:
        req = json.loads(line)
    except ValueError:
        continue
    resp = handle(req)
    resp["id"] = req.get("id") or ""
    sys.stdout.write(json.dumps(resp) + "\n")
    sys.stdout.flush()
`

// syntaxHarness compiles stdin and reports {"ok", "error"}. Separate
// from runHarness so validation never executes the code.
const syntaxHarness = `import json
import sys

try:
    compile(sys.stdin.read(), "<skill>", "exec")
    print(json.dumps({"ok": True}))
except SyntaxError as e:
    print(json.dumps({"ok": False, "error": "Syntax error: %s" % e}))
except Exception as e:
    print(json.dumps({"ok": False, "error": "Validation error: %s" % e}))
`
