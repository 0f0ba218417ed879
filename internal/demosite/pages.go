package demosite

// PageDefinition holds every version of one demo page. Version 1 is the
// most broken; higher versions fix more of the listed Defects.
type PageDefinition struct {
	Path        string
	Description string

	// Defects lists the axe rule IDs version 1 is expected to violate.
	Defects  []string
	Versions map[int]string
}

// AllPages returns the demo page definitions.
func AllPages() []PageDefinition {
	return []PageDefinition{
		homePage(),
		contactPage(),
		galleryPage(),
		accessiblePage(),
	}
}

// ===== HOME PAGE =====

func homePage() PageDefinition {
	return PageDefinition{
		Path:        "/",
		Description: "Landing page missing a document language and image text",
		Defects:     []string{"html-has-lang", "image-alt", "document-title"},
		Versions: map[int]string{
			1: `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body>
  <img src="/static/hero.png">
  <h1>Welcome to Acme</h1>
  <p>We make widgets.</p>
  <a href="/contact">Contact</a> <a href="/gallery">Gallery</a>
</body>
</html>`,
			2: `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Acme</title></head>
<body>
  <img src="/static/hero.png">
  <main>
    <h1>Welcome to Acme</h1>
    <p>We make widgets.</p>
    <a href="/contact">Contact</a> <a href="/gallery">Gallery</a>
  </main>
</body>
</html>`,
			3: `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Acme</title></head>
<body>
  <main>
    <img src="/static/hero.png" alt="A row of brightly coloured widgets">
    <h1>Welcome to Acme</h1>
    <p>We make widgets.</p>
    <a href="/contact">Contact</a> <a href="/gallery">Gallery</a>
  </main>
</body>
</html>`,
		},
	}
}

// ===== CONTACT PAGE =====

func contactPage() PageDefinition {
	return PageDefinition{
		Path:        "/contact",
		Description: "Form with unlabeled inputs and low-contrast help text",
		Defects:     []string{"label", "color-contrast", "button-name"},
		Versions: map[int]string{
			1: `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Contact</title></head>
<body>
  <main>
    <h1>Contact us</h1>
    <form action="/contact" method="post">
      <input type="text" name="name" placeholder="Name">
      <input type="email" name="email" placeholder="Email">
      <textarea name="message"></textarea>
      <p style="color:#bbbbbb;background:#ffffff">We reply within two days.</p>
      <button type="submit"></button>
    </form>
  </main>
</body>
</html>`,
			2: `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Contact</title></head>
<body>
  <main>
    <h1>Contact us</h1>
    <form action="/contact" method="post">
      <label for="name">Name</label> <input id="name" type="text" name="name">
      <label for="email">Email</label> <input id="email" type="email" name="email">
      <label for="message">Message</label> <textarea id="message" name="message"></textarea>
      <p style="color:#bbbbbb;background:#ffffff">We reply within two days.</p>
      <button type="submit">Send</button>
    </form>
  </main>
</body>
</html>`,
			3: `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Contact</title></head>
<body>
  <main>
    <h1>Contact us</h1>
    <form action="/contact" method="post">
      <label for="name">Name</label> <input id="name" type="text" name="name">
      <label for="email">Email</label> <input id="email" type="email" name="email">
      <label for="message">Message</label> <textarea id="message" name="message"></textarea>
      <p style="color:#333333;background:#ffffff">We reply within two days.</p>
      <button type="submit">Send</button>
    </form>
  </main>
</body>
</html>`,
		},
	}
}

// ===== GALLERY PAGE =====

func galleryPage() PageDefinition {
	return PageDefinition{
		Path:        "/gallery",
		Description: "Many images without alt text and icon links without names",
		Defects:     []string{"image-alt", "link-name"},
		Versions: map[int]string{
			1: `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Gallery</title></head>
<body>
  <main>
    <h1>Gallery</h1>
    <img src="/static/1.png"><img src="/static/2.png"><img src="/static/3.png">
    <img src="/static/4.png"><img src="/static/5.png"><img src="/static/6.png">
    <img src="/static/7.png"><img src="/static/8.png"><img src="/static/9.png">
    <img src="/static/10.png"><img src="/static/11.png"><img src="/static/12.png">
    <a href="/prev"><img src="/static/left.svg" alt=""></a>
    <a href="/next"><img src="/static/right.svg" alt=""></a>
  </main>
</body>
</html>`,
			2: `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Gallery</title></head>
<body>
  <main>
    <h1>Gallery</h1>
    <img src="/static/1.png" alt="Widget one"><img src="/static/2.png" alt="Widget two">
    <a href="/prev" aria-label="Previous page"><img src="/static/left.svg" alt=""></a>
    <a href="/next" aria-label="Next page"><img src="/static/right.svg" alt=""></a>
  </main>
</body>
</html>`,
		},
	}
}

// ===== ACCESSIBLE PAGE =====

func accessiblePage() PageDefinition {
	return PageDefinition{
		Path:        "/accessible",
		Description: "Control page with no known defects",
		Versions: map[int]string{
			1: `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>About Acme</title></head>
<body>
  <header><nav aria-label="Main"><a href="/">Home</a></nav></header>
  <main>
    <h1>About Acme</h1>
    <p>Acme has made widgets since 1949.</p>
  </main>
</body>
</html>`,
		},
	}
}
